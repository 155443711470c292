package provision

import (
	"context"
	"fmt"
	"io"

	"github.com/maxmcd/envspec/internal/descriptor"
)

// Print is a dry-run provisioner, it writes the set one identifier per line.
type Print struct {
	Writer io.Writer
}

var _ Provisioner = Print{}

func (p Print) Provision(ctx context.Context, set descriptor.DependencySet) (Handle, error) {
	return printHandle{set: set, w: p.Writer}, nil
}

type printHandle struct {
	set descriptor.DependencySet
	w   io.Writer
}

func (h printHandle) Command() []string { return nil }
func (h printHandle) Close() error      { return nil }

func (h printHandle) Run(ctx context.Context, stdio Stdio) error {
	w := h.w
	if w == nil {
		w = stdio.Stdout
	}
	for _, dep := range h.set.Dependencies {
		if _, err := fmt.Fprintln(w, dep); err != nil {
			return err
		}
	}
	return nil
}
