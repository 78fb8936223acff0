package main

import "github.com/agentic-research/grist/cmd"

func main() {
	cmd.Execute()
}
