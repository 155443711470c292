// Package provision hands an effective dependency set to the build
// orchestrator that turns it into a usable shell environment.
package provision

import (
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/maxmcd/envspec/internal/tracing"
	"github.com/pkg/errors"
)

var tracer = tracing.Tracer("provision")

const (
	KindNix   = "nix"
	KindPrint = "print"
)

type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Provisioner turns a dependency set into an environment.
type Provisioner interface {
	Provision(ctx context.Context, set descriptor.DependencySet) (Handle, error)
}

// Handle is a provisioned environment. Run enters it, Close releases any
// files that were created for it.
type Handle interface {
	Command() []string
	Run(ctx context.Context, stdio Stdio) error
	Close() error
}

// ProvisioningError wraps a failure reported by the orchestrator. Its message
// is the orchestrator's, unchanged.
type ProvisioningError struct {
	Orchestrator string
	ExitCode     int
	Err          error
}

func (e ProvisioningError) Error() string { return e.Err.Error() }
func (e ProvisioningError) Cause() error  { return e.Err }
func (e ProvisioningError) Unwrap() error { return e.Err }

func newProvisioningError(orchestrator string, err error) error {
	pe := ProvisioningError{Orchestrator: orchestrator, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		pe.ExitCode = exitErr.ExitCode()
	}
	return pe
}

type Options struct {
	// Run is a command to run inside the environment instead of an
	// interactive shell.
	Run string
	// Shell is the interactive command to start, orchestrator default when
	// empty.
	Shell string
	// Attributes maps dependency identifiers to the name the orchestrator
	// knows them by. Identifiers that aren't listed are passed as-is.
	Attributes map[string]string
	// Pure asks the orchestrator to drop the caller's environment.
	Pure bool
}

// AttributePaths prefixes each identifier that is only reachable through
// the platform condition with prefix. Identifiers that are also base
// dependencies are left alone.
func AttributePaths(spec descriptor.Spec, prefix string) map[string]string {
	out := map[string]string{}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return out
	}
	base := map[string]struct{}{}
	for _, dep := range spec.BaseDependencies {
		base[dep] = struct{}{}
	}
	for _, dep := range spec.ConditionalDependencies {
		if _, ok := base[dep]; ok {
			continue
		}
		out[dep] = prefix + "." + dep
	}
	return out
}

// New returns the provisioner for kind. An empty kind is nix.
func New(kind string, opts Options, stdout io.Writer) (Provisioner, error) {
	switch kind {
	case "", KindNix:
		return NewNix(opts), nil
	case KindPrint:
		return Print{Writer: stdout}, nil
	}
	return nil, errors.Errorf("unknown orchestrator kind %q, should be %q or %q", kind, KindNix, KindPrint)
}
