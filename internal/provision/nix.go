package provision

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/maxmcd/envspec/internal/logger"
	"github.com/maxmcd/envspec/pkg/fileutil"
	"github.com/maxmcd/envspec/pkg/fxt"
	"go.opentelemetry.io/otel/attribute"
)

// NixShellEnvVar overrides the nix-shell binary.
const NixShellEnvVar = "ENVSPEC_NIX_SHELL"

type runFunc func(ctx context.Context, argv []string, stdio Stdio) error

func execRun(ctx context.Context, argv []string, stdio Stdio) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdio.Stdin
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	return cmd.Run()
}

// Nix provisions environments with nix-shell.
type Nix struct {
	opts Options

	binary string
	path   string
	run    runFunc
}

var _ Provisioner = new(Nix)

func NewNix(opts Options) *Nix {
	binary := os.Getenv(NixShellEnvVar)
	if binary == "" {
		binary = "nix-shell"
	}
	return &Nix{
		opts:   opts,
		binary: binary,
		path:   os.Getenv("PATH"),
		run:    execRun,
	}
}

// Provision writes a nix expression for set to a temporary directory and
// returns a handle that runs nix-shell on it.
func (n *Nix) Provision(ctx context.Context, set descriptor.DependencySet) (Handle, error) {
	_, span := tracer.Start(ctx, "provision.Nix.Provision")
	defer span.End()
	span.SetAttributes(
		attribute.String("project", set.Project),
		attribute.Int("dependencies", set.Len()),
	)

	binary, err := fileutil.LookPath(n.binary, n.path)
	if err != nil {
		return nil, newProvisioningError(KindNix, err)
	}
	dir, err := ioutil.TempDir("", "envspec-")
	if err != nil {
		return nil, err
	}
	location := filepath.Join(dir, "shell.nix")
	f, err := os.Create(location)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	RenderNix(f, set, n.opts.Attributes)
	if err := f.Close(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	argv := []string{binary, location}
	if n.opts.Pure {
		argv = append(argv, "--pure")
	}
	switch {
	case n.opts.Run != "":
		argv = append(argv, "--run", n.opts.Run)
	case n.opts.Shell != "":
		argv = append(argv, "--command", n.opts.Shell)
	}
	logger.Debugw("provisioned nix environment", "expression", location, "argv", argv)
	return &nixHandle{dir: dir, argv: argv, run: n.run}, nil
}

type nixHandle struct {
	dir  string
	argv []string
	run  runFunc
}

func (h *nixHandle) Command() []string { return append([]string{}, h.argv...) }

func (h *nixHandle) Run(ctx context.Context, stdio Stdio) error {
	ctx, span := tracer.Start(ctx, "provision.Nix.Run")
	defer span.End()
	if err := h.run(ctx, h.argv, stdio); err != nil {
		return newProvisioningError(KindNix, err)
	}
	return nil
}

func (h *nixHandle) Close() error {
	return os.RemoveAll(h.dir)
}

var nixIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_'-]*$`)

// nixAttrPath renders a dotted attribute path below pkgs, quoting any
// segment that isn't a plain nix identifier.
func nixAttrPath(path string) string {
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if !nixIdentifier.MatchString(part) {
			parts[i] = fmt.Sprintf("%q", part)
		}
	}
	return "pkgs." + strings.Join(parts, ".")
}

// RenderNix writes a shell.nix expression that makes the dependencies of set
// available. attributes maps identifiers to nixpkgs attribute paths.
func RenderNix(w io.Writer, set descriptor.DependencySet, attributes map[string]string) {
	fxt.Fprintfln(w, "# %s environment for %s, generated by envspec", set.Project, set.Platform)
	fmt.Fprintln(w, "let")
	fmt.Fprintln(w, "  pkgs = import <nixpkgs> {};")
	fmt.Fprintln(w, "in pkgs.mkShell {")
	fxt.Fprintfln(w, "  name = %q;", set.Project)
	fmt.Fprintln(w, "  buildInputs = [")
	for _, dep := range set.Dependencies {
		attr, ok := attributes[dep]
		if !ok {
			attr = dep
		}
		fxt.Fprintfln(w, "    %s", nixAttrPath(attr))
	}
	fmt.Fprintln(w, "  ];")
	fmt.Fprintln(w, "}")
}
