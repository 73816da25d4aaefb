package web

import "embed"

// Static holds the single-page planner UI served at /
//
//go:embed static/*.html static/*.js static/*.css
var Static embed.FS
