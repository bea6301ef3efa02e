package util

import (
	"errors"
	"os"
)

// FileExists reports whether path exists. A missing file is not an error.
func FileExists(path string) (exists bool, _ error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	} else if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else {
		return false, err
	}
}
