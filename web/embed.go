// Package web holds the embedded browser test client served at /.
package web

import "embed"

//go:embed index.html
var Assets embed.FS
