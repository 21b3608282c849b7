package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"gagyebu/internal/ledger"
	applog "gagyebu/internal/log"
)

// handleExport downloads the whole ledger as an indented JSON array.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.store.ExportJSON(&buf); err != nil {
		writeError(w, r, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ledger.ExportFileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, "json", s.store.ImportJSON)
}

func (s *Server) handleImportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, "spreadsheet", s.store.ImportSpreadsheet)
}

type importFunc func(ctx context.Context, r io.Reader) (ledger.Report, error)

// handleImport caps the body, unwraps a multipart upload when present and
// hands the payload to the store.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, source string, run importFunc) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	if source == "json" {
		if mt := r.Header.Get("Content-Type"); mt != "" && !isMultipart(mt) {
			if err := requireJSON(r); err != nil {
				writeError(w, r, "import", err)
				return
			}
		}
	}

	body, err := openUpload(r, s.opts.MaxUploadBytes)
	if err != nil {
		writeError(w, r, "import", err)
		return
	}
	defer body.Close()

	report, err := run(r.Context(), body)
	if err != nil {
		writeError(w, r, "import", err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogImport(r.Context(), source, report.Imported, report.Replaced, len(report.Rejected))
	if report.Rejected == nil {
		report.Rejected = []int{}
	}
	NewResponse().JSON(report).Write(w)
}
