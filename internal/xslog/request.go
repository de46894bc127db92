package xslog

import (
	"log/slog"
	"net/http"

	"github.com/wakti/whoopsync/internal/xhttp"
)

func RequestIP(r *http.Request) slog.Attr {
	return IP(xhttp.GetRequestIP(r))
}
