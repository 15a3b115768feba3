// Package web embeds the board page template and its static assets.
package web

import "embed"

var (
	//go:embed templates/*.html
	TemplatesFS embed.FS

	//go:embed static/*
	StaticFS embed.FS
)
