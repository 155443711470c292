package command

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/maxmcd/envspec/internal/config"
	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/maxmcd/envspec/internal/logger"
	"github.com/maxmcd/envspec/internal/project"
	"github.com/maxmcd/envspec/internal/provision"
	"github.com/maxmcd/envspec/internal/tracing"
	"github.com/maxmcd/envspec/pkg/starutil"
	"github.com/mitchellh/go-wordwrap"
	"github.com/moby/term"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	commandHelpTemplate = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}}{{if .VisibleFlags}} [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}{{if .Category}}

Category:
   {{.Category}}{{end}}{{if .Description}}

Description:
   {{.Description | nindent 3 | trim}}{{end}}{{if .VisibleFlags}}

Options:{{range .VisibleFlags}}
   {{.}}{{end}}{{end}}
`

	appHelpTemplate = `Usage: {{.Usage}}
	{{.Description | nindent 3 | trim}}
Commands:{{range .VisibleCategories}}{{if .Name}}
	{{.Name}}:{{range .VisibleCommands}}
	  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
	{{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{end}}{{end}}

Options:
	{{range $index, $option := .VisibleFlags}}{{if $index}}
	{{end}}{{$option}}{{end}}
`
)

var tracer trace.Tracer

func init() {
	tracer = tracing.Tracer("command")
}

type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func dirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "dir",
		Value: ".",
		Usage: "directory to start looking for an envspec descriptor in, parent directories are searched too",
	}
}

func platformFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "platform",
		Value: "",
		Usage: "the platform to resolve for, defaults to the host. Accepts names like darwin, macos, linux_amd64",
	}
}

func cliApp(s streams) *cli.App {
	app := &cli.App{
		Name:                  "envspec",
		Usage:                 "envspec [--version] [--help] <command> [args]",
		Version:               "0.1.0",
		HideHelpCommand:       true,
		CustomAppHelpTemplate: appHelpTemplate,
		Reader:                s.stdin,
		Writer:                s.stdout,
		ErrWriter:             s.stderr,
		Commands: []*cli.Command{
			{
				Name:  "resolve",
				Usage: "Print the dependencies an environment needs on a platform",
				UsageText: `envspec resolve [options]

resolve reads the nearest envspec descriptor and prints the dependencies it
needs on the given platform: the base dependencies, followed by the
conditional dependencies if the platform condition holds for that platform.
Platforms envspec doesn't recognize only get the base dependencies.
`,
				Flags: []cli.Flag{
					dirFlag(),
					platformFlag(),
					&cli.StringFlag{
						Name:  "format",
						Value: "text",
						Usage: "output format: text, json or toml",
					},
				},
				Action: func(c *cli.Context) error {
					ctx, span := tracer.Start(c.Context, "envspec resolve")
					defer span.End()
					e, err := newEnvspec(ctx, c.String("dir"))
					if err != nil {
						return err
					}
					set := e.resolve(ctx, platform(c.String("platform")))
					return writeSet(c.App.Writer, set, c.String("format"))
				},
			},
			{
				Name:  "render",
				Usage: "Render a descriptor as canonical toml or as a nix expression",
				UsageText: `envspec render [options]

With --format toml the descriptor is printed back in canonical form, useful for
converting yaml, json or starlark descriptors. With --format nix the
environment is resolved for --platform and printed as a shell.nix expression.
`,
				Flags: []cli.Flag{
					dirFlag(),
					platformFlag(),
					&cli.StringFlag{
						Name:  "format",
						Value: "toml",
						Usage: "output format: toml or nix",
					},
				},
				Action: func(c *cli.Context) error {
					ctx, span := tracer.Start(c.Context, "envspec render")
					defer span.End()
					e, err := newEnvspec(ctx, c.String("dir"))
					if err != nil {
						return err
					}
					switch c.String("format") {
					case "toml":
						return e.cfg.Render(c.App.Writer)
					case "nix":
						set := e.resolve(ctx, platform(c.String("platform")))
						provision.RenderNix(c.App.Writer, set,
							provision.AttributePaths(e.spec, e.cfg.Orchestrator.ConditionalPrefix))
					default:
						return errors.Errorf("unknown format %q, should be toml or nix", c.String("format"))
					}
					return nil
				},
			},
			{
				Name:  "shell",
				Usage: "Open a shell with the environment's dependencies available",
				UsageText: `envspec shell [options]

shell resolves the environment for the host and hands the dependencies to the
orchestrator configured in the descriptor (nix-shell unless it says otherwise).
Use --run to run a single command in the environment instead of an interactive
shell. Errors from the orchestrator are printed as it reported them and its
exit code is returned.
`,
				Flags: []cli.Flag{
					dirFlag(),
					platformFlag(),
					&cli.StringFlag{
						Name:  "run",
						Usage: "command to run inside the environment",
					},
					&cli.StringFlag{
						Name:  "orchestrator",
						Usage: "override the orchestrator from the descriptor: nix or print",
					},
					&cli.BoolFlag{
						Name:  "pure",
						Usage: "ask the orchestrator to clear the calling environment",
					},
				},
				Action: func(c *cli.Context) error {
					ctx, span := tracer.Start(c.Context, "envspec shell")
					defer span.End()
					e, err := newEnvspec(ctx, c.String("dir"))
					if err != nil {
						return err
					}
					kind := e.cfg.Orchestrator.Kind
					if c.String("orchestrator") != "" {
						kind = c.String("orchestrator")
					}
					if kind != provision.KindPrint && c.String("run") == "" {
						if _, isTerminal := term.GetFdInfo(c.App.Reader); !isTerminal {
							return errors.New("an interactive shell needs a terminal, use --run to run a command")
						}
					}
					p, err := provision.New(kind, provision.Options{
						Run:        c.String("run"),
						Shell:      e.cfg.Orchestrator.Shell,
						Attributes: provision.AttributePaths(e.spec, e.cfg.Orchestrator.ConditionalPrefix),
						Pure:       c.Bool("pure"),
					}, c.App.Writer)
					if err != nil {
						return err
					}
					set := e.resolve(ctx, platform(c.String("platform")))
					logger.Debugw("provisioning", "set", set.String(), "orchestrator", kind)
					handle, err := p.Provision(ctx, set)
					if err != nil {
						return err
					}
					defer handle.Close()
					return handle.Run(ctx, provision.Stdio{
						Stdin:  c.App.Reader,
						Stdout: c.App.Writer,
						Stderr: c.App.ErrWriter,
					})
				},
			},
			{
				Name:      "matrix",
				Usage:     "Show the dependencies for every known platform",
				UsageText: "envspec matrix [options]",
				Flags:     []cli.Flag{dirFlag()},
				Action: func(c *cli.Context) error {
					ctx, span := tracer.Start(c.Context, "envspec matrix")
					defer span.End()
					e, err := newEnvspec(ctx, c.String("dir"))
					if err != nil {
						return err
					}
					platforms := descriptor.KnownPlatforms()
					sets, err := resolveAll(ctx, e, platforms)
					if err != nil {
						return err
					}
					writeMatrix(c.App.Writer, e.spec, sets)
					return nil
				},
			},
			{
				Name:  "lock",
				Usage: "Record resolved dependency sets in envspec.lock",
				UsageText: `envspec lock [options]

lock resolves the environment for the host, every platform named in the
descriptor's condition and every platform already in the lockfile (or every
known platform with --all) and records the results in envspec.lock next to
the descriptor. Existing entries are refreshed, so the lockfile always
matches the current descriptor. With --check nothing is
written, instead every platform in the lockfile is resolved again and
compared with what was recorded.
`,
				Flags: []cli.Flag{
					dirFlag(),
					&cli.BoolFlag{
						Name:  "all",
						Usage: "lock every known platform",
					},
					&cli.BoolFlag{
						Name:  "check",
						Usage: "verify the lockfile instead of writing it",
					},
				},
				Action: func(c *cli.Context) error {
					ctx, span := tracer.Start(c.Context, "envspec lock")
					defer span.End()
					e, err := newEnvspec(ctx, c.String("dir"))
					if err != nil {
						return err
					}
					if c.Bool("check") {
						return checkLockfile(ctx, c.App.Writer, e)
					}
					existing, err := config.ReadLockfile(e.project.Location())
					if err != nil {
						return err
					}
					platforms := lockPlatforms(e.spec, existing.PlatformNames(), c.Bool("all"))
					sets, err := resolveAll(ctx, e, platforms)
					if err != nil {
						return err
					}
					lf := &config.LockFile{}
					for _, set := range sets {
						lf.AddSet(set)
					}
					if err := config.WriteLockfile(lf, e.project.Location()); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "locked %d platform(s) for %s\n", len(sets), e.spec.Name)
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "Load and validate every descriptor below a directory",
				UsageText: `envspec check [options] [pattern]

check finds every descriptor below --dir that matches pattern (by default
"` + project.DefaultPattern + `"), loads it and validates it. All failures are
reported, not just the first.
`,
				Flags: []cli.Flag{dirFlag()},
				Action: func(c *cli.Context) error {
					ctx, span := tracer.Start(c.Context, "envspec check")
					defer span.End()
					if c.Args().Len() > 1 {
						return errors.New("envspec check takes one or zero arguments")
					}
					return checkDescriptors(ctx, c.App.Writer, c.String("dir"), c.Args().First())
				},
			},
		},
	}

	for _, c := range app.Commands {
		c.CustomHelpTemplate = commandHelpTemplate

		// Wrap the options help to 80 width. Requires knowledge of the longest
		// flag length. Assumes there are never aliases.
		longest := 0
		for _, flag := range c.Flags {
			for _, name := range flag.Names() {
				if len(name) > longest {
					longest = len(name)
				}
			}
		}
		for _, flag := range c.Flags {
			switch c := flag.(type) {
			case *cli.BoolFlag:
				c.Usage = formatFlag(c.Usage, longest)
			case *cli.StringFlag:
				c.Usage = formatFlag(c.Usage, longest)
			}
		}
	}
	return app
}

// resolveAll resolves the environment for each platform concurrently. The
// result has the same order as platforms.
func resolveAll(ctx context.Context, e envspec, platforms []descriptor.Platform) ([]descriptor.DependencySet, error) {
	sets := make([]descriptor.DependencySet, len(platforms))
	group, ctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		i, p := i, p
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sets[i] = e.resolve(ctx, p)
			return nil
		})
	}
	return sets, group.Wait()
}

// lockPlatforms returns the platforms lock writes: the host, the platforms
// named in the condition and those that are already locked.
func lockPlatforms(spec descriptor.Spec, locked []string, all bool) []descriptor.Platform {
	if all {
		return descriptor.KnownPlatforms()
	}
	candidates := append([]descriptor.Platform{descriptor.HostPlatform()}, spec.PlatformCondition.OS...)
	for _, name := range locked {
		candidates = append(candidates, descriptor.ParsePlatform(name))
	}
	out := []descriptor.Platform{}
	seen := map[descriptor.Platform]struct{}{}
	for _, p := range candidates {
		if _, ok := seen[p]; ok || !p.Known() {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func checkLockfile(ctx context.Context, w io.Writer, e envspec) error {
	lf, err := config.ReadLockfile(e.project.Location())
	if err != nil {
		return err
	}
	names := lf.PlatformNames()
	if len(names) == 0 {
		return errors.Errorf("no lockfile entries found in %s, run `envspec lock` first", e.project.Location())
	}
	var failed []string
	for _, name := range names {
		if err := lf.Verify(e.resolve(ctx, descriptor.ParsePlatform(name))); err != nil {
			failed = append(failed, err.Error())
			continue
		}
		fmt.Fprintf(w, "ok %s\n", name)
	}
	if len(failed) > 0 {
		return errors.New(strings.Join(failed, "\n"))
	}
	return nil
}

func checkDescriptors(ctx context.Context, w io.Writer, dir, pattern string) error {
	paths, err := project.FindAllDescriptors(dir, pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.Errorf("no descriptors found in %q", dir)
	}
	var failed []string
	for _, path := range paths {
		if _, err := project.LoadDescriptor(ctx, path); err != nil {
			failed = append(failed, err.Error())
			continue
		}
		fmt.Fprintf(w, "ok %s\n", path)
	}
	if len(failed) > 0 {
		return errors.Errorf("%d of %d descriptors failed:\n%s", len(failed), len(paths), strings.Join(failed, "\n"))
	}
	return nil
}

// RunCLI runs the cli with os.Args
func RunCLI() {
	defer tracing.Stop()

	// Patch cli lib to remove bool default
	oldFlagStringer := cli.FlagStringer
	cli.FlagStringer = func(f cli.Flag) string {
		return strings.TrimSuffix(oldFlagStringer(f), " (default: false)")
	}

	app := cliApp(streams{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
	log.SetOutput(ioutil.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		s := make(chan os.Signal, 5)
		count := 0
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
		for {
			<-s
			count++
			cancel()
			if count == 3 {
				fmt.Println("Three interrupt attempts, exiting immediately")
				os.Exit(1)
			}
			fmt.Println("Got interrupt, shutting down")
		}
	}()
	if exitCode := exitCode(app.RunContext(ctx, os.Args)); exitCode != 0 {
		// Explicitly call stop since the Exit will not call the defer
		tracing.Stop()
		os.Exit(exitCode)
	}
}

// exitCode reports err and returns the code the process should exit with.
// Orchestrator failures were already printed by the orchestrator, only their
// exit code is passed on.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var pe provision.ProvisioningError
	if errors.As(err, &pe) && pe.ExitCode != 0 {
		return pe.ExitCode
	}
	logger.Print(strings.TrimSuffix(starutil.AnnotateError(err), "\n"))
	return 1
}

func formatFlag(usage string, longest int) string {
	return strings.ReplaceAll(
		wordwrap.WrapString(usage,
			uint(80-3-longest-3),
		), "\n", "\n\t")
}
