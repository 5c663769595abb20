package results

import (
	"strings"

	"github.com/pkg/errors"
)

// SanitizeTag validates an operator-chosen artifact namespace. Tags end
// up in file names, so path separators and sloppy whitespace are
// rejected up front rather than discovered as odd files later.
func SanitizeTag(tag string) (string, error) {
	if tag == "" {
		return "", errors.New("tag must be non-empty")
	}
	if strings.ContainsAny(tag, `/\`) {
		return "", errors.New("tag must not contain path separators")
	}
	if strings.TrimSpace(tag) != tag {
		return "", errors.New("tag must not have leading/trailing whitespace")
	}
	return tag, nil
}
