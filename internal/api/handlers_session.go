package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dgallion1/docscope/internal/analysis"
	"github.com/dgallion1/docscope/internal/analyzer"
	"github.com/dgallion1/docscope/internal/document"
	"github.com/dgallion1/docscope/internal/gate"
	"github.com/dgallion1/docscope/internal/session"
)

// handleSelectFile runs the upload through the file gate and makes it the
// session's current document.
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	ctl := controllerFrom(r.Context())

	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			kindError(w, analysis.Errorf(analysis.KindTooLarge, "The file is too large. The maximum size is %s.",
				document.FormatSize(s.cfg.MaxUploadBytes)), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[analyzer.FieldName]
	if len(files) == 0 {
		jsonError(w, fmt.Sprintf("file is required in field %q", analyzer.FieldName), http.StatusBadRequest)
		return
	}
	fh := files[0]

	info, err := ctl.OnFileSelected(gate.Candidate{
		Name:      fh.Filename,
		Size:      fh.Size,
		MediaType: fh.Header.Get("Content-Type"),
		Open:      func() (io.ReadCloser, error) { return openPart(fh) },
	})
	if err != nil {
		var aerr *analysis.Error
		if !errors.As(err, &aerr) {
			s.log.Error("failed to read upload", "session_id", ctl.ID, "error", err)
			jsonError(w, "failed to read file", http.StatusInternalServerError)
			return
		}
		code := http.StatusBadRequest
		switch aerr.Kind {
		case analysis.KindInvalidType:
			code = http.StatusUnsupportedMediaType
		case analysis.KindTooLarge:
			code = http.StatusRequestEntityTooLarge
		}
		kindError(w, aerr, code)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"document": info})
}

func openPart(fh *multipart.FileHeader) (io.ReadCloser, error) {
	return fh.Open()
}

func (s *Server) handleClearFile(w http.ResponseWriter, r *http.Request) {
	if ctl := controllerFrom(r.Context()); ctl != nil {
		ctl.OnClear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalyze starts an asynchronous submission; the page polls
// /api/status for progress and the outcome.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctl := controllerFrom(r.Context())
	if ctl == nil {
		jsonError(w, "select a PDF file first", http.StatusConflict)
		return
	}

	// The submission outlives this request.
	if err := ctl.Start(context.WithoutCancel(r.Context())); err != nil {
		if errors.Is(err, session.ErrNoDocument) {
			jsonError(w, "select a PDF file first", http.StatusConflict)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	snap := ctl.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"submission_id": snap.SubmissionID,
		"phase":         snap.Phase,
		"poll_url":      "/api/status",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctl := controllerFrom(r.Context())
	if ctl == nil {
		writeJSON(w, http.StatusOK, s.sessions.IdleSnapshot())
		return
	}
	writeJSON(w, http.StatusOK, ctl.Snapshot())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctl := controllerFrom(r.Context())
	if ctl == nil {
		jsonError(w, "no analysis result to report", http.StatusNotFound)
		return
	}
	md, err := ctl.Report()
	if err != nil {
		if errors.Is(err, session.ErrNoResult) {
			jsonError(w, "no analysis result to report", http.StatusNotFound)
			return
		}
		s.log.Error("report failed", "session_id", ctl.ID, "error", err)
		jsonError(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	name := "report.md"
	if snap := ctl.Snapshot(); snap.Document != nil {
		name = strings.TrimSuffix(snap.Document.Name, ".pdf") + ".md"
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	io.WriteString(w, md)
}

// handleConnectivity checks the analysis service for the page banner.
func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	if err := s.analyzer.Health(r.Context()); err != nil {
		s.log.Warn("analysis service unreachable", "url", s.cfg.AnalyzerURL, "error", err)
		var aerr *analysis.Error
		if !errors.As(err, &aerr) {
			aerr = analysis.NewError(analysis.KindConnectivity).Wrap(err)
		}
		kindError(w, aerr, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyzerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"analyzer_url": s.cfg.AnalyzerURL,
		"sessions":     s.sessions.Len(),
		"stats":        s.analyzer.Stats.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// kindError reports a classified failure. Only the user message is exposed.
func kindError(w http.ResponseWriter, aerr *analysis.Error, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": aerr.UserMessage(),
		"kind":  string(aerr.Kind),
	})
}
