package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/grist/internal/export"
	"github.com/agentic-research/grist/internal/fusefs"
	"github.com/agentic-research/grist/internal/gramfs"
)

func init() {
	rootCmd.AddCommand(mountCmd)
}

var mountCmd = &cobra.Command{
	Use:   "mount <grammar.json> <mountpoint>",
	Short: "Mount a grammar read-only over FUSE",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := export.Load(args[0])
		if err != nil {
			return err
		}

		gfs := fusefs.New(gramfs.NewSwapSource(g))
		host := fuse.NewFileSystemHost(gfs)

		fmt.Printf("Mounting %s at %s (cgofuse)...\n", args[0], args[1])

		// Use -o ro (Read Only)
		// Use -o uid=N,gid=N to ensure we own the mount (critical for fuse-t/NFS)
		opts := []string{
			"-o", "ro",
			"-o", fmt.Sprintf("uid=%d", os.Getuid()),
			"-o", fmt.Sprintf("gid=%d", os.Getgid()),
		}

		if !host.Mount(args[1], opts) {
			return fmt.Errorf("mount failed")
		}
		return nil
	},
}
