package export

import (
	"bytes"
	"fmt"

	"github.com/agentic-research/grist/api"
)

// DictBytes renders the grammar's terminals as an AFL/libFuzzer token
// dictionary: one keyword="value" line per terminal, values escaped to
// printable ASCII.
func DictBytes(g *api.Grammar) []byte {
	var buf bytes.Buffer
	buf.WriteString("# grist token dictionary\n")
	for i, tok := range Terminals(g) {
		fmt.Fprintf(&buf, "token_%03d=\"%s\"\n", i, escapeDict(tok))
	}
	return buf.Bytes()
}

// WriteDict writes the dictionary artifact atomically.
func WriteDict(path string, g *api.Grammar) error {
	return writeAtomic(path, DictBytes(g))
}

func escapeDict(tok string) string {
	var buf bytes.Buffer
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		switch {
		case c == '"' || c == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c < 0x20 || c > 0x7e:
			fmt.Fprintf(&buf, "\\x%02x", c)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}
