// Package frontend embeds the settings page shared by the desktop host and
// the preview server.
package frontend

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var Assets embed.FS

// IndexPath is the page the hotkey controller models.
const IndexPath = "dist/index.html"

// Dist returns the asset tree rooted at dist/.
func Dist() fs.FS {
	sub, err := fs.Sub(Assets, "dist")
	if err != nil {
		// dist is embedded at compile time.
		panic(err)
	}
	return sub
}

// Index returns the raw settings page.
func Index() ([]byte, error) {
	return Assets.ReadFile(IndexPath)
}
