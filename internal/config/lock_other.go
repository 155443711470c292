//go:build windows || plan9 || js || wasip1
// +build windows plan9 js wasip1

package config

import (
	"io"
	"os"
)

// lockFile only creates the lock file here, there is no advisory locking.
func lockFile(path string) (io.Closer, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
}
