package server

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/timzaak/notir/web"
)

// handleStatic serves the embedded browser client. Unknown paths fall
// back to index.html so bookmarked client URLs keep working.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" || name == "." {
		name = "index.html"
	}

	data, err := web.Assets.ReadFile(name)
	if err != nil {
		name = "index.html"
		if data, err = web.Assets.ReadFile(name); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)

	// see if we can gzip it:
	var writer io.Writer = w
	for _, acceptedEnc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(acceptedEnc) == "gzip" {
			gzipper, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
			if err != nil {
				break
			}
			writer = gzipper
			defer gzipper.Close()
			w.Header().Set("Content-Encoding", "gzip")
			break
		}
	}
	writer.Write(data)
}
