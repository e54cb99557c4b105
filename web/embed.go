package web

import "embed"

// Forms embeds the per-module form fragments.
//
//go:embed forms/*.html
var Forms embed.FS
