package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/maxmcd/envspec/pkg/fxt"
	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTOML     Format = "toml"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatStarlark Format = "star"
)

// DescriptorFilenames are the names a descriptor can have, in the order they
// are looked for.
var DescriptorFilenames = []string{
	"envspec.toml",
	"envspec.yaml",
	"envspec.yml",
	"envspec.json",
	"envspec.star",
}

// FormatFromPath picks the descriptor format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	case ".star":
		return FormatStarlark, nil
	}
	return "", errors.Errorf("don't know how to read descriptor %q", path)
}

type Config struct {
	Environment  Environment  `toml:"environment" yaml:"environment" json:"environment"`
	Orchestrator Orchestrator `toml:"orchestrator" yaml:"orchestrator" json:"orchestrator"`
}

type Environment struct {
	Name         string   `toml:"name" yaml:"name" json:"name"`
	Version      string   `toml:"version" yaml:"version" json:"version"`
	Dependencies []string `toml:"dependencies" yaml:"dependencies" json:"dependencies"`
	When         When     `toml:"when" yaml:"when" json:"when"`
}

// When is the single platform specific branch of an environment.
type When struct {
	OS           OSList   `toml:"os" yaml:"os" json:"os"`
	Dependencies []string `toml:"dependencies" yaml:"dependencies" json:"dependencies"`
}

func (w When) IsZero() bool { return len(w.OS) == 0 && len(w.Dependencies) == 0 }

// OSList is a list of platform names that can also be written as a single
// string.
type OSList []string

func (l *OSList) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*l = OSList{v}
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return errors.Errorf("os entry %v is not a string", item)
			}
			*l = append(*l, s)
		}
	default:
		return errors.New("unexpected data type for os, should be a string or list of strings")
	}
	return nil
}

func (l *OSList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*l = OSList{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}

func (l *OSList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = OSList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("unexpected data type for os, should be a string or list of strings")
	}
	*l = list
	return nil
}

type Orchestrator struct {
	// Kind is the provisioner to use, "nix" or "print".
	Kind string `toml:"kind" yaml:"kind" json:"kind"`
	// ConditionalPrefix is prepended to conditional dependency identifiers
	// when they're handed to the orchestrator.
	ConditionalPrefix string `toml:"conditional_prefix" yaml:"conditional_prefix" json:"conditional_prefix"`
	Shell             string `toml:"shell" yaml:"shell" json:"shell"`
}

// Spec converts the config to a descriptor.Spec. Platform names that aren't
// recognized are kept as-is so that Spec.Validate can report them.
func (cfg Config) Spec() descriptor.Spec {
	spec := descriptor.Spec{
		Name:                    cfg.Environment.Name,
		Version:                 cfg.Environment.Version,
		BaseDependencies:        cfg.Environment.Dependencies,
		ConditionalDependencies: cfg.Environment.When.Dependencies,
	}
	for _, name := range cfg.Environment.When.OS {
		p := descriptor.ParsePlatform(name)
		if p == descriptor.PlatformUnknown {
			p = descriptor.Platform(name)
		}
		spec.PlatformCondition.OS = append(spec.PlatformCondition.OS, p)
	}
	return spec
}

// FromSpec builds a Config around an existing spec, used to render
// descriptors that were written in starlark.
func FromSpec(spec descriptor.Spec) Config {
	cfg := Config{Environment: Environment{
		Name:         spec.Name,
		Version:      spec.Version,
		Dependencies: spec.BaseDependencies,
		When: When{
			Dependencies: spec.ConditionalDependencies,
		},
	}}
	for _, p := range spec.PlatformCondition.OS {
		cfg.Environment.When.OS = append(cfg.Environment.When.OS, string(p))
	}
	return cfg
}

// Render writes the config out as canonical TOML. Values are encoded by the
// toml encoder, so they're escaped the way TOML expects.
func (cfg Config) Render(w io.Writer) error {
	env := cfg.Environment
	for _, list := range [][]string{{env.Name, env.Version}, env.Dependencies, env.When.OS, env.When.Dependencies} {
		for _, v := range list {
			if !utf8.ValidString(v) {
				return errors.Errorf("%q is not valid UTF-8 and can't be written as TOML", v)
			}
		}
	}
	sections := []struct {
		header string
		body   interface{}
		skip   bool
	}{
		{"environment", struct {
			Name         string   `toml:"name"`
			Version      string   `toml:"version,omitempty"`
			Dependencies []string `toml:"dependencies"`
		}{env.Name, env.Version, nonNil(env.Dependencies)}, false},
		{"environment.when", struct {
			OS           []string `toml:"os"`
			Dependencies []string `toml:"dependencies"`
		}{nonNil(env.When.OS), nonNil(env.When.Dependencies)}, env.When.IsZero()},
		{"orchestrator", struct {
			Kind              string `toml:"kind,omitempty"`
			ConditionalPrefix string `toml:"conditional_prefix,omitempty"`
			Shell             string `toml:"shell,omitempty"`
		}(cfg.Orchestrator), cfg.Orchestrator == (Orchestrator{})},
	}
	for i, section := range sections {
		if section.skip {
			continue
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fxt.Fprintfln(w, "[%s]", section.header)
		if err := toml.NewEncoder(w).Encode(section.body); err != nil {
			return errors.Wrapf(err, "error rendering [%s]", section.header)
		}
	}
	return nil
}

func nonNil(list []string) []string {
	return append([]string{}, list...)
}

func ReadConfig(location string) (cfg Config, err error) {
	format, err := FormatFromPath(location)
	if err != nil {
		return cfg, err
	}
	f, err := os.Open(location)
	if err != nil {
		return cfg, errors.Wrapf(err, "error loading %q", location)
	}
	defer f.Close()
	cfg, err = ParseConfig(f, format)
	return cfg, errors.Wrapf(err, "error decoding %q", location)
}

func ParseConfig(r io.Reader, format Format) (cfg Config, err error) {
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&cfg)
		if err != nil {
			return cfg, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, errors.Errorf("unknown field %q", undecoded[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err = dec.Decode(&cfg); err != nil && err != io.EOF {
			return cfg, err
		}
	case FormatJSON:
		b, err := ioutil.ReadAll(r)
		if err != nil {
			return cfg, err
		}
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(b)))
		dec.DisallowUnknownFields()
		if err = dec.Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, errors.Errorf("config format %q can't be parsed as data", format)
	}
	if cfg.Environment.Name == "" {
		return cfg, errors.New("Environment name can't be blank")
	}
	if err = descriptor.ValidateVersion(cfg.Environment.Version); err != nil {
		return cfg, errors.Wrap(err, "environment")
	}
	return cfg, nil
}
