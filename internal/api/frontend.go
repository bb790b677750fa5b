package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/crovest/command-center/web"
)

// mountFrontend serves the embedded single page app. Any path not claimed
// by another route gets index.html so client-side routing works on reload.
func mountFrontend(r chi.Router) {
	staticFS := http.FileServer(http.FS(web.StaticFS()))
	r.Handle("/static/*", http.StripPrefix("/static/", staticFS))

	r.Get("/", serveIndex)
	r.Get("/*", serveIndex)
}

func serveIndex(w http.ResponseWriter, _ *http.Request) {
	data, err := web.IndexHTML()
	if err != nil {
		log.Error().Err(err).Msg("embedded index.html missing")
		http.Error(w, "dashboard not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}
