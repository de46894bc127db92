package handler

import (
	"net/http"

	"github.com/wakti/whoopsync/internal/version"
	"github.com/wakti/whoopsync/internal/xhttp"
)

// HandleHealth handles GET /health requests.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	xhttp.WriteOK(w, map[string]string{
		"status":  "ok",
		"version": version.Get(),
	})
}
