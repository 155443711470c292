package command

import (
	"context"

	"github.com/maxmcd/envspec/internal/config"
	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/maxmcd/envspec/internal/project"
	"go.opentelemetry.io/otel/attribute"
)

type envspec struct {
	project *project.Project
	cfg     config.Config
	spec    descriptor.Spec
}

func newEnvspec(ctx context.Context, wd string) (e envspec, err error) {
	if e.project, err = project.NewProject(wd); err != nil {
		return
	}
	if e.spec, err = e.project.Spec(ctx); err != nil {
		return
	}
	// already loaded by Spec, this doesn't read the descriptor again
	if e.cfg, err = e.project.Load(ctx); err != nil {
		return
	}
	return e, nil
}

// platform returns the platform named by flag, or the host platform if the
// flag is empty. Unrecognized names resolve as an unknown platform.
func platform(flag string) descriptor.Platform {
	if flag == "" {
		return descriptor.HostPlatform()
	}
	return descriptor.ParsePlatform(flag)
}

func (e envspec) resolve(ctx context.Context, host descriptor.Platform) descriptor.DependencySet {
	_, span := tracer.Start(ctx, "resolve")
	defer span.End()
	set := descriptor.Resolve(e.spec, host)
	span.SetAttributes(
		attribute.String("platform", host.String()),
		attribute.Int("dependencies", set.Len()),
	)
	return set
}
