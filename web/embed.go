// Package web holds the page templates and static assets compiled into
// the zenith binary.
package web

import "embed"

// TemplatesFS holds the named page and fragment templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS
