package site

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html static/*
var embedded embed.FS

// staticHandler serves the embedded CSS and icons.
func staticHandler() http.Handler {
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		// Should never happen: the directory is embedded above.
		return http.NotFoundHandler()
	}
	files := http.FileServerFS(sub)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
