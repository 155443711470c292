package config

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/maxmcd/envspec/internal/descriptor"
	"github.com/maxmcd/envspec/internal/errs"
	"github.com/maxmcd/envspec/pkg/fileutil"
	"github.com/maxmcd/envspec/pkg/hasher"
	"github.com/pkg/errors"
)

const LockfileName = "envspec.lock"

// LockFile records the resolved dependency set of an environment for every
// platform it has been locked on.
type LockFile struct {
	lock sync.Mutex

	Environment string               `toml:"environment"`
	Platforms   map[string]LockEntry `toml:"platforms"`
}

type LockEntry struct {
	Fingerprint  string   `toml:"fingerprint"`
	Dependencies []string `toml:"dependencies"`
}

// Fingerprint hashes the ordered dependency list of a set.
func Fingerprint(set descriptor.DependencySet) string {
	return hasher.HashStrings(set.Dependencies)
}

// AddSet records set, replacing any previous entry for its platform.
func (l *LockFile) AddSet(set descriptor.DependencySet) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.Platforms == nil {
		l.Platforms = map[string]LockEntry{}
	}
	l.Environment = set.Project
	l.Platforms[set.Platform.String()] = LockEntry{
		Fingerprint:  Fingerprint(set),
		Dependencies: append([]string{}, set.Dependencies...),
	}
}

// Verify checks that set matches what was recorded for its platform.
func (l *LockFile) Verify(set descriptor.DependencySet) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.Environment != "" && l.Environment != set.Project {
		return errors.Errorf("lockfile is for environment %q, not %q", l.Environment, set.Project)
	}
	entry, found := l.Platforms[set.Platform.String()]
	if !found {
		return errors.Errorf("lockfile has no entry for platform %s", set.Platform)
	}
	if fp := Fingerprint(set); fp != entry.Fingerprint {
		return errs.ErrLockMismatch{
			Platform: set.Platform.String(),
			Locked:   entry.Fingerprint,
			Resolved: fp,
		}
	}
	return nil
}

// PlatformNames returns the locked platforms, sorted.
func (l *LockFile) PlatformNames() (out []string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for name := range l.Platforms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func ReadLockfile(dir string) (*LockFile, error) {
	lf := &LockFile{Platforms: map[string]LockEntry{}}
	location := filepath.Join(dir, LockfileName)
	if !fileutil.FileExists(location) {
		// Don't read the lockfile if we don't have one
		return lf, nil
	}
	if _, err := toml.DecodeFile(location, lf); err != nil {
		return nil, errors.Wrapf(err, "error decoding lockfile %q", location)
	}
	return lf, nil
}

func getLockfileLock(dir string) (io.Closer, error) {
	count := 0
	for {
		done, err := lockFile(filepath.Join(dir, LockfileName+".lock"))
		if count++; err != nil &&
			strings.Contains(err.Error(), "temporarily") &&
			count < 5 {
			time.Sleep(time.Millisecond * 10)
			continue
		}
		if err != nil {
			return nil, err
		}
		return done, nil
	}
}

// WriteLockfile merges the entries of lockFile into the lockfile in dir. An
// entry for a platform that's already locked is overwritten.
func WriteLockfile(lockFile *LockFile, dir string) (err error) {
	lockFile.lock.Lock()
	defer lockFile.lock.Unlock()

	done, err := getLockfileLock(dir)
	if err != nil {
		return err
	}
	defer done.Close()

	f, err := os.OpenFile(filepath.Join(dir, LockfileName),
		os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	lf := LockFile{Platforms: map[string]LockEntry{}}
	if _, err := toml.DecodeReader(f, &lf); err != nil {
		return errors.Wrap(err, "error decoding existing lockfile")
	}
	if lf.Environment != "" && lockFile.Environment != "" && lf.Environment != lockFile.Environment {
		return errors.Errorf("found existing lockfile for environment %q, not sure how to proceed", lf.Environment)
	}
	if lockFile.Environment != "" {
		lf.Environment = lockFile.Environment
	}
	for platform, entry := range lockFile.Platforms {
		lf.Platforms[platform] = entry
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	return toml.NewEncoder(f).Encode(&lf)
}
