// Package web embeds the page templates and static assets for serving from
// the Go binary.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/glitchsite/web"
//	tmpl := web.TemplatesFS() // io/fs.FS rooted at templates/
//	static := web.StaticFS()  // io/fs.FS rooted at static/
package web

import (
	"embed"
	"io/fs"
	"log"
)

//go:embed templates static
var dist embed.FS

// TemplatesFS returns a filesystem rooted at the embedded templates/ directory.
func TemplatesFS() fs.FS {
	return sub("templates")
}

// StaticFS returns a filesystem rooted at the embedded static/ directory.
// This is ready to use with http.FileServerFS or http.FS.
func StaticFS() fs.FS {
	return sub("static")
}

func sub(dir string) fs.FS {
	s, err := fs.Sub(dist, dir)
	if err != nil {
		log.Fatalf("web: %s: %v", dir, err)
	}
	return s
}
