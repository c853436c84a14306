package cli

import (
	"fmt"
	"golang.org/x/term"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Printer writes user-visible output, which goes to STDERR by default.
type Printer struct {
	out io.Writer
}

func NewPrinter() *Printer {
	return &Printer{out: os.Stderr}
}

func (p *Printer) Redirect(writer io.Writer) {
	p.out = writer
}

func (p *Printer) Writer() io.Writer {
	return p.out
}

// IsTerminal reports whether output goes to a terminal.
func (p *Printer) IsTerminal() bool {
	f, ok := p.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) Print(msg ...any) {
	_, _ = fmt.Fprint(p.out, msg...)
}

func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *Printer) Println(msg ...any) {
	_, _ = fmt.Fprintln(p.out, msg...)
}

// Table prints rows under a header.
// Columns are aligned for a terminal, otherwise they're tab separated for other tools to consume.
func (p *Printer) Table(header []string, rows [][]string) {
	if !p.IsTerminal() {
		p.Println(strings.Join(header, "\t"))
		for _, row := range rows {
			p.Println(strings.Join(row, "\t"))
		}
		return
	}
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}
