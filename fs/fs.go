// Package appfs embeds the static files the binaries need at runtime: SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
