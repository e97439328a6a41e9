// Package web holds the showroom front end.
package web

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed *.html *.js *.css
var files embed.FS

// FS returns the front end. A non-empty dir serves the files from disk
// instead, so pages can be edited without rebuilding.
func FS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return files
}
