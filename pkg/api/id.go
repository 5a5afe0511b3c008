package api

import (
	"regexp"
	"strings"
)

type (
	// RunID is a unique identifier for a workflow run
	RunID string

	// DefID is the qualified identifier of a task definition inside its
	// definition tree, built from the names of its enclosing definitions
	DefID string

	// InstanceID identifies a concrete task instance: a definition plus
	// the duplication path it was expanded at
	InstanceID string
)

// DefIDSeparator joins the names that make up a qualified DefID
const DefIDSeparator = "/"

// InvalidIDChars matches characters not permitted in file-system keys
// derived from IDs. Valid characters are: letters, digits, underscore, dot,
// hyphen, plus, space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// SanitizeID lowercases an ID, removes invalid characters, replaces spaces
// with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}

// Child returns the qualified ID of a definition named name nested
// directly inside the receiver
func (id DefID) Child(name Name) DefID {
	if id == "" {
		return DefID(name)
	}
	return id + DefIDSeparator + DefID(name)
}

// NewInstanceID combines a definition ID and duplication path
func NewInstanceID(def DefID, path Path) InstanceID {
	return InstanceID(string(def) + path.String())
}
