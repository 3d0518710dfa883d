// Package web provides the embedded console page.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// FileSystem returns the embedded assets with the static folder as root.
func FileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// Handler serves the embedded assets. Mount it under a prefix with
// http.StripPrefix; "/" serves index.html.
func Handler() (http.Handler, error) {
	staticFS, err := FileSystem()
	if err != nil {
		return nil, err
	}
	return http.FileServer(http.FS(staticFS)), nil
}

// Index returns the console page.
func Index() ([]byte, error) {
	return staticFiles.ReadFile("static/index.html")
}
