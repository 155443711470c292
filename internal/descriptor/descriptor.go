// Package descriptor holds the build environment descriptor and the rule that
// turns it into the dependency set for a given host.
package descriptor

import (
	"strings"

	"github.com/maxmcd/envspec/internal/errs"
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// Spec describes the native dependencies a project needs to build. Base
// dependencies are always required, conditional dependencies only when
// PlatformCondition holds for the host.
type Spec struct {
	Name    string
	Version string

	BaseDependencies        []string
	PlatformCondition       Condition
	ConditionalDependencies []string
}

// Validate checks the parts of a Spec that Resolve doesn't care about but a
// descriptor author would want to hear about.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errs.ErrEmptyName
	}
	if err := ValidateVersion(s.Version); err != nil {
		return err
	}
	for _, list := range [][]string{s.BaseDependencies, s.ConditionalDependencies} {
		for i, dep := range list {
			if strings.TrimSpace(dep) == "" {
				return errors.Wrapf(errs.ErrEmptyDependency, "entry %d", i)
			}
			if dep == s.Name {
				return errs.ErrSelfReference{Project: s.Name}
			}
		}
	}
	for _, p := range s.PlatformCondition.OS {
		if !p.Known() {
			return errors.Errorf("condition references unknown platform %q", string(p))
		}
	}
	return nil
}

// ValidateVersion accepts an empty version or a semantic version written
// without the leading "v".
func ValidateVersion(version string) error {
	if version == "" {
		return nil
	}
	if !semver.IsValid("v" + version) {
		return errors.Errorf("version %q is not a valid semantic version number", version)
	}
	return nil
}

// Duplicates returns identifiers that are listed more than once across the
// base and conditional lists. Resolve drops them, so this is only useful for
// warnings.
func (s Spec) Duplicates() (out []string) {
	counts := map[string]int{}
	for _, dep := range s.BaseDependencies {
		counts[dep]++
	}
	for _, dep := range s.ConditionalDependencies {
		counts[dep]++
	}
	reported := map[string]struct{}{}
	for _, list := range [][]string{s.BaseDependencies, s.ConditionalDependencies} {
		for _, dep := range list {
			if _, ok := reported[dep]; ok || counts[dep] < 2 {
				continue
			}
			reported[dep] = struct{}{}
			out = append(out, dep)
		}
	}
	return out
}

// DependencySet is the effective set of dependencies for one project on one
// platform.
type DependencySet struct {
	Project      string
	Platform     Platform
	Dependencies []string
}

func (ds DependencySet) Len() int { return len(ds.Dependencies) }

func (ds DependencySet) Contains(dep string) bool {
	for _, d := range ds.Dependencies {
		if d == dep {
			return true
		}
	}
	return false
}

func (ds DependencySet) String() string {
	return ds.Project + "@" + ds.Platform.String() + ": [" + strings.Join(ds.Dependencies, " ") + "]"
}

// Resolve returns the dependency set of spec on host: the base dependencies,
// followed by the conditional dependencies if the platform condition holds.
// Duplicate and empty identifiers are dropped, first occurrence wins.
func Resolve(spec Spec, host Platform) DependencySet {
	lists := [][]string{spec.BaseDependencies}
	if spec.PlatformCondition.Holds(host) {
		lists = append(lists, spec.ConditionalDependencies)
	}
	return DependencySet{
		Project:      spec.Name,
		Platform:     host,
		Dependencies: union(lists...),
	}
}

func union(lists ...[]string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, dep := range list {
			if dep == "" {
				continue
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			out = append(out, dep)
		}
	}
	return out
}
