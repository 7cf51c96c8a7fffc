package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/inbox"
	"github.com/hugo-lorenzo-mato/crashguard/internal/render"
)

const maxListLimit = 500

// ReportListResponse is the body of GET /api/v1/reports.
type ReportListResponse struct {
	Reports []inbox.Entry `json:"reports"`
	Total   int           `json:"total"`
	Unacked int           `json:"unacked"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := inbox.ListFilter{}
	if v := r.URL.Query().Get("unacked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid unacked parameter")
			return
		}
		filter.UnackedOnly = b
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxListLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 0 and 500")
			return
		}
		filter.Limit = n
	}

	if _, err := s.store.Ingest(ctx, s.dir); err != nil {
		s.logger.Warn("ingesting report directory", "dir", s.dir, "error", err)
	}

	entries, err := s.store.List(ctx, filter)
	if err != nil {
		s.respondDomainError(w, err, "failed to list reports")
		return
	}
	if entries == nil {
		entries = []inbox.Entry{}
	}
	total, unacked, err := s.store.Counts(ctx)
	if err != nil {
		s.respondDomainError(w, err, "failed to count reports")
		return
	}

	respondJSON(w, http.StatusOK, ReportListResponse{
		Reports: entries,
		Total:   total,
		Unacked: unacked,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	entry, err := s.store.Get(ctx, id)
	if core.IsCategory(err, core.ErrCatNotFound) {
		// The report may have been written since the last ingest.
		if _, ingestErr := s.store.Ingest(ctx, s.dir); ingestErr == nil {
			entry, err = s.store.Get(ctx, id)
		}
	}
	if err != nil {
		s.respondDomainError(w, err, "failed to look up report")
		return
	}

	report, err := diagnostics.LoadReport(entry.Path)
	if err != nil {
		s.respondDomainError(w, err, "failed to load report")
		return
	}
	s.respondReport(w, r, report, entry.Path)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	report, file, err := diagnostics.LoadLatestReport(s.dir)
	if err != nil {
		s.respondDomainError(w, err, "failed to load latest report")
		return
	}
	s.respondReport(w, r, report, file.Path)
}

func (s *Server) handleAckReport(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.Ack(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, err, "failed to acknowledge report")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// respondReport writes the report in the format named by ?format, with a
// content-derived ETag.
func (s *Server) respondReport(w http.ResponseWriter, r *http.Request, report *core.CrashReport, path string) {
	format := render.FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := render.ParseFormat(v)
		if err != nil {
			s.respondDomainError(w, err, "invalid format")
			return
		}
		format = f
	}

	var buf bytes.Buffer
	var err error
	if format == render.FormatMarkdown {
		_, err = io.WriteString(&buf, render.ReportMarkdown(report, path))
	} else {
		err = render.Report(&buf, format, report, path, render.Options{})
	}
	if err != nil {
		s.respondDomainError(w, err, "failed to render report")
		return
	}

	sum := sha256.Sum256(buf.Bytes())
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("writing report response", "error", err)
	}
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func contentType(format render.Format) string {
	switch format {
	case render.FormatYAML:
		return "application/yaml"
	case render.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case render.FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}
