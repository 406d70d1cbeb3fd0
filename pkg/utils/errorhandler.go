package utils

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// WrapError annotates err with the caller's position so a log entry
// points at the failure site rather than the logging site. The wrapped
// error stays reachable through errors.Is/As.
func WrapError(err error) error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return err
	}
	return fmt.Errorf("error at %s:%d: %w", filepath.Base(file), line, err)
}
