package project

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/maxmcd/envspec/internal/config"
	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/maxmcd/envspec/internal/errs"
	"github.com/maxmcd/envspec/pkg/starutil"
	"github.com/pkg/errors"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
)

func init() {
	// Descriptors are declarations, keep the language small.
	resolve.AllowLambda = false
	resolve.AllowNestedDef = false
	resolve.AllowRecursion = false
	resolve.AllowFloat = false
	resolve.AllowSet = true
}

// environment is the starlark value returned by the environment() builtin.
type environment struct {
	spec         descriptor.Spec
	orchestrator config.Orchestrator
}

var (
	_ starlark.Value    = environment{}
	_ starlark.HasAttrs = environment{}
)

func (env environment) String() string        { return fmt.Sprintf("<environment %q>", env.spec.Name) }
func (env environment) Type() string          { return "environment" }
func (env environment) Freeze()               {}
func (env environment) Truth() starlark.Bool  { return starlark.True }
func (env environment) Hash() (uint32, error) { return 0, starutil.ErrUnhashable("environment") }

func (env environment) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(env.spec.Name), nil
	case "version":
		return starlark.String(env.spec.Version), nil
	case "dependencies":
		return stringTuple(env.spec.BaseDependencies), nil
	case "conditional_dependencies":
		return stringTuple(env.spec.ConditionalDependencies), nil
	}
	return nil, nil
}

func (env environment) AttrNames() []string {
	return []string{"conditional_dependencies", "dependencies", "name", "version"}
}

// when is the value returned by the when() builtin.
type when struct {
	os           []string
	dependencies []string
}

var _ starlark.Value = when{}

func (w when) String() string {
	return fmt.Sprintf("<when os=%q>", w.os)
}
func (w when) Type() string          { return "when" }
func (w when) Freeze()               {}
func (w when) Truth() starlark.Bool  { return starlark.True }
func (w when) Hash() (uint32, error) { return 0, starutil.ErrUnhashable("when") }

func stringTuple(values []string) starlark.Tuple {
	out := make(starlark.Tuple, 0, len(values))
	for _, v := range values {
		out = append(out, starlark.String(v))
	}
	return out
}

type runtime struct {
	predeclared starlark.StringDict
}

func newRuntime() *runtime {
	return &runtime{
		predeclared: starlark.StringDict{
			"environment": starlark.NewBuiltin("environment", environmentBuiltin),
			"when":        starlark.NewBuiltin("when", whenBuiltin),
		},
	}
}

func (rt *runtime) newThread(ctx context.Context, name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, errors.Errorf("can't load %q, descriptors are self contained", module)
		},
	}
	thread.SetLocal("ctx", ctx)
	return thread
}

func whenBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		osValue      starlark.Value
		dependencies *starlark.List
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"os", &osValue,
		"dependencies?", &dependencies,
	); err != nil {
		return nil, err
	}
	var (
		w   when
		err error
	)
	if w.os, err = starutil.StringOrList(osValue); err != nil {
		return nil, errors.Wrap(err, "when: os")
	}
	if dependencies != nil {
		if w.dependencies, err = starutil.IterableToGoList(dependencies); err != nil {
			return nil, errors.Wrap(err, "when: dependencies")
		}
	}
	return w, nil
}

func environmentBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name         starlark.String
		version      starlark.String
		dependencies *starlark.List
		whenValue    starlark.Value = starlark.None
		orchestrator *starlark.Dict
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"name", &name,
		"dependencies?", &dependencies,
		"when?", &whenValue,
		"version?", &version,
		"orchestrator?", &orchestrator,
	); err != nil {
		return nil, err
	}
	env := environment{spec: descriptor.Spec{
		Name:    name.GoString(),
		Version: version.GoString(),
	}}
	var err error
	if dependencies != nil {
		if env.spec.BaseDependencies, err = starutil.IterableToGoList(dependencies); err != nil {
			return nil, errors.Wrap(err, "environment: dependencies")
		}
	}
	switch w := whenValue.(type) {
	case starlark.NoneType:
	case when:
		for _, o := range w.os {
			p := descriptor.ParsePlatform(o)
			if p == descriptor.PlatformUnknown {
				p = descriptor.Platform(o)
			}
			env.spec.PlatformCondition.OS = append(env.spec.PlatformCondition.OS, p)
		}
		env.spec.ConditionalDependencies = w.dependencies
	default:
		return nil, errors.Errorf("environment: when should be the result of when(), not %s", whenValue.Type())
	}
	if orchestrator != nil {
		values, err := starutil.DictToGoStringMap(orchestrator)
		if err != nil {
			return nil, errors.Wrap(err, "environment: orchestrator")
		}
		for k, v := range values {
			switch k {
			case "kind":
				env.orchestrator.Kind = v
			case "conditional_prefix":
				env.orchestrator.ConditionalPrefix = v
			case "shell":
				env.orchestrator.Shell = v
			default:
				return nil, errors.Errorf("environment: unknown orchestrator option %q", k)
			}
		}
	}
	return env, nil
}

// execDescriptor runs a starlark descriptor and returns the single
// environment it defines.
func execDescriptor(ctx context.Context, filename string) (cfg config.Config, err error) {
	rt := newRuntime()
	src, err := os.ReadFile(filename)
	if err != nil {
		return cfg, errors.Wrapf(err, "error loading %q", filename)
	}
	globals, err := starlark.ExecFile(rt.newThread(ctx, filename), filename, src, rt.predeclared)
	if err != nil {
		return cfg, errors.New(starutil.AnnotateError(err))
	}
	var names []string
	var found environment
	for name, val := range globals {
		// underscored globals are private to the file
		if strings.HasPrefix(name, "_") {
			continue
		}
		if env, ok := val.(environment); ok {
			names = append(names, name)
			found = env
		}
	}
	switch len(names) {
	case 0:
		return cfg, errors.Wrap(errs.ErrNoEnvironment, filename)
	case 1:
	default:
		sort.Strings(names)
		return cfg, errors.Errorf("%s defines more than one environment: %s", filename, strings.Join(names, ", "))
	}
	cfg = config.FromSpec(found.spec)
	cfg.Orchestrator = found.orchestrator
	return cfg, nil
}
