package server

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var embeddedVersion string

// Version returns the semantic version string served on /version.
func Version() string {
	return strings.TrimSpace(embeddedVersion)
}
