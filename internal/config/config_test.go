package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pijulBase = []string{"xxHash", "zstd", "libsodium", "openssl", "pkgconfig"}
var pijulFrameworks = []string{"CoreServices", "Security", "SystemConfiguration"}

func TestReadConfig(t *testing.T) {
	for _, path := range []string{
		"./testdata/envspec.toml",
		"./testdata/envspec.yaml",
		"./testdata/envspec.json",
	} {
		t.Run(path, func(t *testing.T) {
			cfg, err := ReadConfig(path)
			require.NoError(t, err)
			spec := cfg.Spec()
			require.NoError(t, spec.Validate())

			assert.Equal(t, "pijul", spec.Name)
			assert.Equal(t, pijulBase, spec.BaseDependencies)
			assert.Equal(t, pijulFrameworks, spec.ConditionalDependencies)
			assert.Equal(t, descriptor.OnOS(descriptor.Darwin), spec.PlatformCondition)
			assert.Equal(t, "nix", cfg.Orchestrator.Kind)
			assert.Equal(t, "darwin.apple_sdk.frameworks", cfg.Orchestrator.ConditionalPrefix)
		})
	}
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name        string
		format      Format
		input       string
		errContains string
		wantOS      []descriptor.Platform
	}{
		{
			name:   "os list",
			format: FormatTOML,
			input: `[environment]
name = "x"
[environment.when]
os = ["darwin", "freebsd"]
dependencies = ["a"]`,
			wantOS: []descriptor.Platform{descriptor.Darwin, descriptor.FreeBSD},
		},
		{
			name:        "blank name",
			format:      FormatTOML,
			input:       `[environment]`,
			errContains: "name can't be blank",
		},
		{
			name:   "bad version",
			format: FormatTOML,
			input: `[environment]
name = "x"
version = "one"`,
			errContains: "not a valid semantic version",
		},
		{
			name:        "os has the wrong type",
			format:      FormatTOML,
			input:       "[environment]\nname = \"x\"\n[environment.when]\nos = 1",
			errContains: "string or list of strings",
		},
		{
			name:        "unknown json field",
			format:      FormatJSON,
			input:       `{"environment": {"name": "x"}, "nope": 1}`,
			errContains: "unknown field",
		},
		{
			name:        "unknown toml field",
			format:      FormatTOML,
			input:       "[environment]\nname = \"x\"\ndependecies = [\"a\"]",
			errContains: `unknown field "environment.dependecies"`,
		},
		{
			name:        "unknown toml table",
			format:      FormatTOML,
			input:       "[environment]\nname = \"x\"\n[extra]\nkey = 1",
			errContains: `unknown field "extra"`,
		},
		{
			name:        "unknown yaml field",
			format:      FormatYAML,
			input:       "environment:\n  name: x\n  when:\n    platform: darwin",
			errContains: "field platform not found",
		},
		{
			name:        "empty yaml",
			format:      FormatYAML,
			input:       ``,
			errContains: "name can't be blank",
		},
		{
			name:   "unknown platform is kept for validation",
			format: FormatYAML,
			input: `environment:
  name: x
  when:
    os: beos`,
			wantOS: []descriptor.Platform{"beos"},
		},
		{
			name:        "starlark isn't data",
			format:      FormatStarlark,
			input:       `env = environment(name="x")`,
			errContains: "can't be parsed as data",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(strings.NewReader(tt.input), tt.format)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOS, cfg.Spec().PlatformCondition.OS)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"envspec.toml":   FormatTOML,
		"a/envspec.yml":  FormatYAML,
		"envspec.YAML":   FormatYAML,
		"envspec.jsonc":  FormatJSON,
		"x/envspec.star": FormatStarlark,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}
	_, err := FormatFromPath("shell.nix")
	assert.Error(t, err)
}

func TestConfig_Render(t *testing.T) {
	cfg, err := ReadConfig("./testdata/envspec.yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cfg.Render(&buf))
	assert.Equal(t, `[environment]
name = "pijul"
dependencies = ["xxHash", "zstd", "libsodium", "openssl", "pkgconfig"]

[environment.when]
os = ["macOS"]
dependencies = ["CoreServices", "Security", "SystemConfiguration"]

[orchestrator]
kind = "nix"
conditional_prefix = "darwin.apple_sdk.frameworks"
`, buf.String())

	// rendered output reads back to the same spec
	roundTripped, err := ParseConfig(&buf, FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, cfg.Spec(), roundTripped.Spec())
}

func TestFromSpec(t *testing.T) {
	spec := descriptor.Spec{
		Name:                    "pijul",
		BaseDependencies:        pijulBase,
		PlatformCondition:       descriptor.OnOS(descriptor.Darwin),
		ConditionalDependencies: pijulFrameworks,
	}
	assert.Equal(t, spec, FromSpec(spec).Spec())

	var buf bytes.Buffer
	require.NoError(t, FromSpec(descriptor.Spec{Name: "bare", BaseDependencies: []string{"a"}}).Render(&buf))
	assert.Equal(t, "[environment]\nname = \"bare\"\ndependencies = [\"a\"]\n", buf.String())

	buf.Reset()
	require.NoError(t, FromSpec(descriptor.Spec{Name: "empty"}).Render(&buf))
	assert.Equal(t, "[environment]\nname = \"empty\"\ndependencies = []\n", buf.String())
}

func TestConfig_RenderEscaping(t *testing.T) {
	cfg := Config{
		Environment: Environment{
			Name:         "bell\a",
			Version:      "1.0.0",
			Dependencies: []string{"tab\there", "quote\"d", "vt\v", "del\x7f", `back\slash`},
		},
		Orchestrator: Orchestrator{Shell: "zsh"},
	}
	var buf bytes.Buffer
	require.NoError(t, cfg.Render(&buf))
	assert.NotContains(t, buf.String(), `\a`)
	assert.NotContains(t, buf.String(), `\x7f`)
	assert.Contains(t, buf.String(), "\n\n[orchestrator]\nshell = \"zsh\"\n")

	read, err := ParseConfig(&buf, FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, cfg, read)

	cfg.Environment.Dependencies = []string{"\xff\xfe"}
	err = cfg.Render(&bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")
}
