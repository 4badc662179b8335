//go:build !unix

package store

import "os"

// writeLocked falls back to a plain rewrite where flock is unavailable.
func writeLocked(path string, data []byte) error {
	return os.WriteFile(path, data, 0o664)
}

func readLocked(path string) ([]byte, error) {
	return os.ReadFile(path)
}
