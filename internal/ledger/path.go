package ledger

import (
	"fmt"
	"strings"
)

const separator = "/"

// Join builds a path from segments, rejecting segments that would escape or
// split the hierarchy.
func Join(segments ...string) (string, error) {
	if len(segments) == 0 {
		return "", ErrInvalidPath
	}
	for _, s := range segments {
		if err := validateSegment(s); err != nil {
			return "", err
		}
	}
	return strings.Join(segments, separator), nil
}

// MustJoin is Join for segments known to be valid at compile time.
func MustJoin(segments ...string) string {
	p, err := Join(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidatePath checks every segment of an already joined path.
func ValidatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	for _, s := range strings.Split(path, separator) {
		if err := validateSegment(s); err != nil {
			return err
		}
	}
	return nil
}

// Parent returns the path without its last segment, or "" for a root segment.
func Parent(path string) string {
	i := strings.LastIndex(path, separator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Base returns the last segment of path.
func Base(path string) string {
	return path[strings.LastIndex(path, separator)+1:]
}

func validateSegment(s string) error {
	switch {
	case s == "", s == ".", s == "..":
		return fmt.Errorf("%w: segment %q", ErrInvalidPath, s)
	case strings.ContainsAny(s, "/*?[]\\"):
		return fmt.Errorf("%w: segment %q contains a reserved character", ErrInvalidPath, s)
	}
	return nil
}
