package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/R167/ipwatch/common"
	"github.com/R167/ipwatch/internal/output"
)

// Change describes one detected address change.
type Change struct {
	Machine string
	Old     common.AddressRecord
	New     common.AddressRecord
}

type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// Lines renders the change report, one entry per line.
func (c Change) Lines() []string {
	lines := []string{
		fmt.Sprintf("The IP address of \"%s\" has changed:", c.Machine),
		"",
		"Old IP",
	}
	lines = append(lines, recordLines(c.Old)...)
	lines = append(lines, "New IP")
	return append(lines, recordLines(c.New)...)
}

func recordLines(r common.AddressRecord) []string {
	return []string{
		"  IP Address  : " + r.IP,
		"  Info Source : " + r.ServerLabel(),
	}
}

// FormatBody renders the report with CRLF line endings.
func FormatBody(c Change) string {
	return strings.Join(c.Lines(), "\r\n")
}

// Console prints the report to an output sink.
type Console struct {
	out output.Output
}

func NewConsole(out output.Output) *Console {
	return &Console{out: out}
}

func (n *Console) Notify(ctx context.Context, c Change) error {
	for _, line := range c.Lines() {
		n.out.Println(line)
	}
	return nil
}

// Fanout delivers to every notifier, even after one fails.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, c Change) error {
	var err error
	for _, n := range f {
		err = multierr.Append(err, n.Notify(ctx, c))
	}
	return err
}
