package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pijul() Spec {
	return Spec{
		Name:                    "pijul",
		BaseDependencies:        []string{"xxHash", "zstd", "libsodium", "openssl", "pkgconfig"},
		PlatformCondition:       OnOS(Darwin),
		ConditionalDependencies: []string{"CoreServices", "Security", "SystemConfiguration"},
	}
}

func TestResolve(t *testing.T) {
	base := []string{"xxHash", "zstd", "libsodium", "openssl", "pkgconfig"}
	tests := []struct {
		name string
		spec Spec
		host Platform
		want []string
	}{
		{
			name: "linux gets the base set",
			spec: pijul(),
			host: Linux,
			want: base,
		},
		{
			name: "darwin gets the frameworks appended",
			spec: pijul(),
			host: Darwin,
			want: append(append([]string{}, base...), "CoreServices", "Security", "SystemConfiguration"),
		},
		{
			name: "unknown host",
			spec: pijul(),
			host: ParsePlatform("beos"),
			want: base,
		},
		{
			name: "empty conditional set",
			spec: Spec{
				Name:              "pijul",
				BaseDependencies:  base,
				PlatformCondition: OnOS(Darwin),
			},
			host: Darwin,
			want: base,
		},
		{
			name: "duplicates across lists",
			spec: Spec{
				Name:                    "x",
				BaseDependencies:        []string{"a", "b"},
				PlatformCondition:       OnOS(Linux),
				ConditionalDependencies: []string{"b", "c", "a"},
			},
			host: Linux,
			want: []string{"a", "b", "c"},
		},
		{
			name: "duplicates within base",
			spec: Spec{
				Name:             "x",
				BaseDependencies: []string{"a", "b", "a", "", "c"},
			},
			host: Linux,
			want: []string{"a", "b", "c"},
		},
		{
			name: "zero condition never holds",
			spec: Spec{
				Name:                    "x",
				BaseDependencies:        []string{"a"},
				ConditionalDependencies: []string{"b"},
			},
			host: Darwin,
			want: []string{"a"},
		},
		{
			name: "empty spec",
			spec: Spec{Name: "x"},
			host: Darwin,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.spec, tt.host)
			assert.Equal(t, tt.want, got.Dependencies)
			assert.Equal(t, tt.spec.Name, got.Project)
			assert.Equal(t, tt.host, got.Platform)
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	spec := pijul()
	for _, host := range append(KnownPlatforms(), PlatformUnknown) {
		first := Resolve(spec, host)
		second := Resolve(spec, host)
		require.Equal(t, first, second)
	}
}

func TestResolveDoesNotAliasInput(t *testing.T) {
	spec := pijul()
	got := Resolve(spec, Linux)
	got.Dependencies[0] = "changed"
	assert.Equal(t, "xxHash", spec.BaseDependencies[0])

	again := Resolve(spec, Linux)
	assert.Equal(t, "xxHash", again.Dependencies[0])
}

func TestResolveCounts(t *testing.T) {
	spec := pijul()
	darwin := Resolve(spec, ParsePlatform("Darwin"))
	require.Equal(t, 8, darwin.Len())
	assert.True(t, darwin.Contains("Security"))

	linux := Resolve(spec, ParsePlatform("linux_amd64"))
	require.Equal(t, 5, linux.Len())
	assert.False(t, linux.Contains("Security"))
}

func TestSpec_Validate(t *testing.T) {
	assert.NoError(t, pijul().Validate())

	tests := []struct {
		name        string
		spec        Spec
		errContains string
	}{
		{
			name:        "blank name",
			spec:        Spec{BaseDependencies: []string{"a"}},
			errContains: "name can't be blank",
		},
		{
			name:        "self reference",
			spec:        Spec{Name: "pijul", BaseDependencies: []string{"zstd", "pijul"}},
			errContains: "lists itself",
		},
		{
			name: "self reference in conditional",
			spec: Spec{
				Name:                    "pijul",
				PlatformCondition:       OnOS(Darwin),
				ConditionalDependencies: []string{"pijul"},
			},
			errContains: "lists itself",
		},
		{
			name:        "blank dependency",
			spec:        Spec{Name: "pijul", BaseDependencies: []string{"zstd", " "}},
			errContains: "entry 1",
		},
		{
			name:        "unknown platform in condition",
			spec:        Spec{Name: "pijul", PlatformCondition: OnOS("beos")},
			errContains: "unknown platform",
		},
		{
			name:        "version isn't semver",
			spec:        Spec{Name: "pijul", Version: "one"},
			errContains: "not a valid semantic version",
		},
		{
			name:        "partial version",
			spec:        Spec{Name: "pijul", Version: "1.0.0-"},
			errContains: "not a valid semantic version",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidateVersion(t *testing.T) {
	for _, v := range []string{"", "1.0.0", "0.2.3", "1.0.0-beta.1", "2.1"} {
		assert.NoError(t, ValidateVersion(v), v)
	}
	for _, v := range []string{"one", "1.0.0.0", "v1.0.0", "1.0.0+"} {
		assert.Error(t, ValidateVersion(v), v)
	}
}

func TestSpec_Duplicates(t *testing.T) {
	spec := Spec{
		Name:                    "x",
		BaseDependencies:        []string{"a", "b", "a"},
		ConditionalDependencies: []string{"c", "b"},
	}
	assert.Equal(t, []string{"a", "b"}, spec.Duplicates())
	assert.Empty(t, pijul().Duplicates())
}
