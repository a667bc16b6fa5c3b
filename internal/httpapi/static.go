package httpapi

import (
	"embed"
	"io/fs"
	"net/http"
)

// The chat UI ships inside the binary so a single deployment artifact
// serves both the API and the browser client.
//
//go:embed static/*
var uiAssets embed.FS

// uiHandler serves the embedded chat UI rooted at the static directory.
func uiHandler() http.Handler {
	sub, err := fs.Sub(uiAssets, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(sub))
}
