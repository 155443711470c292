package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotInProject    = errors.New("couldn't find an envspec descriptor in this directory or any parent")
	ErrEmptyName       = errors.New("environment name can't be blank")
	ErrEmptyDependency = errors.New("dependency identifier can't be blank")
	ErrNoEnvironment   = hintError{
		msg:  "descriptor doesn't define an environment",
		hint: `assign the result of environment() to a global without a leading underscore, e.g. env = environment(name = "pijul")`,
	}
)

// hintError is an error with a suggestion for fixing it, printed below the
// error by the cli.
type hintError struct {
	msg  string
	hint string
}

func (e hintError) Error() string { return e.msg }
func (e hintError) Hint() string  { return e.hint }

type ErrSelfReference struct {
	Project string
}

func (e ErrSelfReference) Error() string {
	return fmt.Sprintf("%q lists itself as a dependency", e.Project)
}
func (e ErrSelfReference) Is(err error) bool {
	_, ok := err.(ErrSelfReference)
	return ok
}

type ErrLockMismatch struct {
	Platform string
	Locked   string
	Resolved string
}

func (e ErrLockMismatch) Error() string {
	return fmt.Sprintf("lockfile entry for %s has fingerprint %q but the descriptor resolves to %q, run `envspec lock` to update it",
		e.Platform, e.Locked, e.Resolved)
}
func (e ErrLockMismatch) Is(err error) bool {
	_, ok := err.(ErrLockMismatch)
	return ok
}
