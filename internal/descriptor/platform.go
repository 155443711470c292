package descriptor

import (
	"runtime"
	"sort"
	"strings"
)

// Platform is a normalized operating system identifier. The zero value is
// PlatformUnknown.
type Platform string

const (
	PlatformUnknown Platform = ""

	Darwin    Platform = "darwin"
	Linux     Platform = "linux"
	Windows   Platform = "windows"
	FreeBSD   Platform = "freebsd"
	OpenBSD   Platform = "openbsd"
	NetBSD    Platform = "netbsd"
	DragonFly Platform = "dragonfly"
	Android   Platform = "android"
	IOS       Platform = "ios"
	Illumos   Platform = "illumos"
	Solaris   Platform = "solaris"
	Plan9     Platform = "plan9"
	AIX       Platform = "aix"
	JS        Platform = "js"
	WASIP1    Platform = "wasip1"
)

var aliases = map[string]Platform{
	"darwin":    Darwin,
	"macos":     Darwin,
	"mac":       Darwin,
	"osx":       Darwin,
	"macosx":    Darwin,
	"linux":     Linux,
	"windows":   Windows,
	"win":       Windows,
	"win32":     Windows,
	"win64":     Windows,
	"freebsd":   FreeBSD,
	"openbsd":   OpenBSD,
	"netbsd":    NetBSD,
	"dragonfly": DragonFly,
	"android":   Android,
	"ios":       IOS,
	"illumos":   Illumos,
	"solaris":   Solaris,
	"plan9":     Plan9,
	"aix":       AIX,
	"js":        JS,
	"wasip1":    WASIP1,
}

// ParsePlatform normalizes a platform identifier. It accepts GOOS values,
// common aliases like "macOS" and "osx", and GOOS_GOARCH style strings such
// as "darwin_arm64" or "linux-amd64". Anything it doesn't recognize is
// PlatformUnknown.
func ParsePlatform(s string) Platform {
	s = strings.ToLower(strings.TrimSpace(s))
	if p, ok := aliases[s]; ok {
		return p
	}
	if i := strings.IndexAny(s, "_-/"); i > 0 {
		if p, ok := aliases[s[:i]]; ok {
			return p
		}
	}
	return PlatformUnknown
}

// Known reports whether p is a recognized platform.
func (p Platform) Known() bool {
	return p != PlatformUnknown && aliases[string(p)] == p
}

func (p Platform) String() string {
	if p == PlatformUnknown {
		return "unknown"
	}
	return string(p)
}

// KnownPlatforms returns every recognized platform, sorted.
func KnownPlatforms() []Platform {
	seen := map[Platform]struct{}{}
	out := []Platform{}
	for _, p := range aliases {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HostPlatform returns the platform of the running process. Only the outer
// layers call this; the result is passed into Resolve.
func HostPlatform() Platform {
	return ParsePlatform(runtime.GOOS)
}

// Condition is a predicate over the host platform: it holds when the host is
// one of OS. The zero Condition never holds.
type Condition struct {
	OS []Platform
}

// OnOS returns a Condition that holds on any of the passed platforms.
func OnOS(platforms ...Platform) Condition {
	return Condition{OS: platforms}
}

// Holds evaluates the condition against host. Unknown hosts never match.
func (c Condition) Holds(host Platform) bool {
	if !host.Known() {
		return false
	}
	for _, p := range c.OS {
		if p == host {
			return true
		}
	}
	return false
}

// IsZero reports whether the condition has no platforms.
func (c Condition) IsZero() bool { return len(c.OS) == 0 }

func (c Condition) String() string {
	if c.IsZero() {
		return "never"
	}
	parts := make([]string, 0, len(c.OS))
	for _, p := range c.OS {
		parts = append(parts, p.String())
	}
	return "os in [" + strings.Join(parts, ", ") + "]"
}
