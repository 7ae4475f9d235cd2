package deploykey

import (
	pkgexec "github.com/systmms/homelab/pkg/exec"
)

// CommandChecker resolves executables on PATH.
type CommandChecker struct {
	lookPath pkgexec.LookPathFunc
}

// NewCommandChecker returns a checker using lookPath, or exec.LookPath when nil.
func NewCommandChecker(lookPath pkgexec.LookPathFunc) *CommandChecker {
	if lookPath == nil {
		lookPath = pkgexec.LookPath
	}
	return &CommandChecker{lookPath: lookPath}
}

// CheckRequiredCommands returns a CommandNotFoundError for the first name
// that does not resolve.
func (c *CommandChecker) CheckRequiredCommands(names []string) error {
	for _, name := range names {
		if _, err := c.lookPath(name); err != nil {
			return &CommandNotFoundError{Name: name}
		}
	}
	return nil
}
