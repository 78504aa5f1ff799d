// Package appfs exposes repository-embedded assets.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
