package web

import "embed"

// StaticFS embeds the admin UI (index.html, js, css).
//
//go:embed static/*
var StaticFS embed.FS
