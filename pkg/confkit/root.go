package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// RootEnv overrides project root discovery, e.g. for a deployed binary that
// keeps etc/ next to it.
const RootEnv = "GENETIX_ROOT"

// ProjectRoot returns $GENETIX_ROOT when set, else the nearest ancestor of
// this source file containing go.mod, else the working directory.
func ProjectRoot() (string, error) {
	if root := os.Getenv(RootEnv); root != "" {
		return root, nil
	}
	if _, file, _, ok := runtime.Caller(0); ok {
		for dir := filepath.Dir(file); ; {
			if exists(filepath.Join(dir, "go.mod")) {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("confkit: getwd: %w", err)
	}
	return wd, nil
}
