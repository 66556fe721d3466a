//go:build !linux

package attr

import "fmt"

func getImmutable(path string) (bool, error) {
	return false, fmt.Errorf("get %s: %w", path, ErrUnsupported)
}

func setImmutable(path string, _ bool) error {
	return fmt.Errorf("set %s: %w", path, ErrUnsupported)
}
