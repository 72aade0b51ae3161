// Package progress prints single-line progress for batch steps.
package progress

import (
	"fmt"
	"io"
)

// Counter displays "desc... pct (cur/total)" on one terminal line.
type Counter struct {
	out     io.Writer
	desc    string
	total   int
	current int
}

func New(out io.Writer, desc string, total int) *Counter {
	return &Counter{out: out, desc: desc, total: total}
}

// Set moves the counter to done and redraws it.
func (c *Counter) Set(done int) {
	if c == nil {
		return
	}
	c.current = done
	c.render()
}

// Done ends the line.
func (c *Counter) Done() {
	if c == nil || c.out == nil {
		return
	}
	fmt.Fprintln(c.out)
}

func (c *Counter) render() {
	if c.out == nil {
		return
	}
	if c.total > 0 {
		pct := float64(c.current) / float64(c.total) * 100
		fmt.Fprintf(c.out, "\r   %s... %.1f%% (%d/%d)", c.desc, pct, c.current, c.total)
		return
	}
	fmt.Fprintf(c.out, "\r   %s... %d done", c.desc, c.current)
}
