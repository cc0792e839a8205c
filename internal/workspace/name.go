// pattern: Functional Core

package workspace

import (
	"fmt"
	"regexp"
	"strings"
)

// validNameRe matches names usable as both a directory segment and a branch.
var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

const maxNameLen = 100

// ValidateName checks a user-supplied workspace name.
// Names must start with an alphanumeric character and contain only
// alphanumerics, dots, hyphens, and underscores. Slashes are rejected
// because the name is a single path segment under the project directory.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidName, maxNameLen)
	}
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q must start with alphanumeric, may contain a-z A-Z 0-9 . _ -", ErrInvalidName, name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: name cannot contain '..'", ErrInvalidName)
	}
	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("%w: name cannot end in .lock", ErrInvalidName)
	}
	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: name cannot end in '.'", ErrInvalidName)
	}
	return nil
}
