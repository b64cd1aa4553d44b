// Package web embeds the server-rendered templates and static assets so
// the binary ships self-contained.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS

//go:embed static/*
var Static embed.FS
