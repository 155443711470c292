// Package project finds envspec descriptors on disk and loads them, whatever
// format they're written in.
package project

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maxmcd/envspec/internal/config"
	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/maxmcd/envspec/internal/errs"
	"github.com/maxmcd/envspec/internal/logger"
	"github.com/maxmcd/envspec/internal/tracing"
	"github.com/maxmcd/envspec/pkg/fileutil"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultPattern matches every descriptor file below a directory.
const DefaultPattern = "**/envspec.{toml,yaml,yml,json,star}"

var tracer = tracing.Tracer("project")

type Project struct {
	location   string
	descriptor string

	cfg *config.Config
}

// NewProject looks for a descriptor in the provided working directory and
// its parents.
func NewProject(wd string) (p *Project, err error) {
	absWD, err := filepath.Abs(wd)
	if err != nil {
		return nil, errors.Wrapf(err, "can't convert relative working directory path %q to absolute path", wd)
	}
	found, location, path := findDescriptor(absWD)
	if !found {
		return nil, errs.ErrNotInProject
	}
	return &Project{
		location:   location,
		descriptor: path,
	}, nil
}

func findDescriptor(wd string) (found bool, location, path string) {
	for {
		for _, name := range config.DescriptorFilenames {
			if path := filepath.Join(wd, name); fileutil.FileExists(path) {
				return true, wd, path
			}
		}
		if wd == filepath.Join(wd, "..") {
			return false, "", ""
		}
		wd = filepath.Join(wd, "..")
	}
}

// Location is the directory holding the descriptor.
func (p *Project) Location() string { return p.location }

// DescriptorPath is the absolute path of the descriptor file.
func (p *Project) DescriptorPath() string { return p.descriptor }

// Load reads and validates the project's descriptor. The descriptor is only
// read once, later calls return the same config.
func (p *Project) Load(ctx context.Context) (config.Config, error) {
	if p.cfg != nil {
		return *p.cfg, nil
	}
	cfg, err := LoadDescriptor(ctx, p.descriptor)
	if err != nil {
		return cfg, err
	}
	p.cfg = &cfg
	return cfg, nil
}

// LoadDescriptor reads a descriptor file of any supported format and
// validates the environment it describes.
func LoadDescriptor(ctx context.Context, path string) (cfg config.Config, err error) {
	_, span := tracer.Start(ctx, "project.LoadDescriptor")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	format, err := config.FormatFromPath(path)
	if err != nil {
		return cfg, err
	}
	if format == config.FormatStarlark {
		cfg, err = execDescriptor(ctx, path)
	} else {
		cfg, err = config.ReadConfig(path)
	}
	if err != nil {
		return cfg, err
	}
	spec := cfg.Spec()
	if err := spec.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid environment in %q", path)
	}
	if dups := spec.Duplicates(); len(dups) > 0 {
		logger.Warnf("%s: %q listed more than once, only the first is used", path, dups)
	}
	logger.Debugw("loaded descriptor", "path", path, "name", spec.Name,
		"base", len(spec.BaseDependencies), "conditional", len(spec.ConditionalDependencies))
	return cfg, nil
}

// Spec loads the descriptor and returns just the environment spec.
func (p *Project) Spec(ctx context.Context) (descriptor.Spec, error) {
	cfg, err := p.Load(ctx)
	if err != nil {
		return descriptor.Spec{}, err
	}
	return cfg.Spec(), nil
}

// FindAllDescriptors returns the absolute paths of all descriptors under root
// that match pattern, sorted. Files inside .git directories are skipped.
func FindAllDescriptors(root, pattern string) (paths []string, err error) {
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if !fileutil.DirExists(root) {
		return nil, errors.Errorf("%q is not a directory", root)
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	if err := doublestar.GlobWalk(os.DirFS(root), pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		for _, part := range strings.Split(path, "/") {
			if part == ".git" {
				return nil
			}
		}
		paths = append(paths, filepath.Join(root, filepath.FromSlash(path)))
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "error with pattern %q", pattern)
	}
	sort.Strings(paths)
	return paths, nil
}
