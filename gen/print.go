package gen

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrintOn writes a human-readable description of the generation to w,
// with grouped digits for the byte counts.
func (g *Generation) PrintOn(w io.Writer) {
	p := message.NewPrinter(language.English)
	s := g.Stats()
	p.Fprintf(w, "%s total %d K, used %d K [%#x, %#x, %#x)\n",
		s.Name, s.CommittedBytes/1024, s.UsedBytes/1024,
		g.Bottom(), g.Top(), g.End())
	p.Fprintf(w, "  reserved %d K, range [%d K, %d K], expansions %d, shrinks %d\n",
		s.ReservedBytes/1024, s.MinBytes/1024, s.MaxBytes/1024,
		s.Expansions, s.Shrinks)
}

// String returns a one-line summary for logs.
func (g *Generation) String() string {
	return fmt.Sprintf("%s[%#x,%#x,%#x)", g.name, g.Bottom(), g.Top(), g.End())
}
