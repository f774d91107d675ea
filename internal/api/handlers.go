package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bl4ck0w1/vaultlynx/internal/reporting"
	"github.com/bl4ck0w1/vaultlynx/internal/session"
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

const defaultUploadName = "vault.json"

type errorResponse struct {
	Error string `json:"error"`
}

type resultsResponse struct {
	SessionID      string                      `json:"sessionId"`
	Stage          session.Stage               `json:"analysisStage"`
	Results        []models.AnalyzedItem       `json:"results"`
	Summary        models.VaultAnalysisSummary `json:"summary"`
	LeakCheckError string                      `json:"leakCheckError,omitempty"`
}

// sessionView drops the per-item payload from a snapshot.
func sessionView(snap session.Snapshot) session.Snapshot {
	snap.Items = nil
	return snap
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"stage":   s.session.Snapshot().Stage,
		"session": s.session.GetStats(),
	})
}

// handleUpload accepts either a multipart form with a "file" field or a raw JSON
// body. The breach pass keeps running after the response is written.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	name, raw, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("vault export exceeds %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.session.Load(r.Context(), name, raw); err != nil {
		if errors.Is(err, session.ErrSuperseded) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, sessionView(s.session.Snapshot()))
}

func readUpload(r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, err
			}
			return "", nil, fmt.Errorf("no file provided: %w", err)
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			return "", nil, err
		}
		return filepath.Base(header.Filename), raw, nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, err
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = defaultUploadName
	}
	return filepath.Base(name), raw, nil
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionView(s.session.Snapshot()))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.session.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	if !snap.HasResults() {
		writeError(w, http.StatusConflict, "no vault has been analyzed")
		return
	}
	items := snap.Items
	if !s.cfg.IncludeSecrets {
		items = models.RedactSecrets(items)
	}
	writeJSON(w, http.StatusOK, resultsResponse{
		SessionID:      snap.ID,
		Stage:          snap.Stage,
		Results:        items,
		Summary:        *snap.Summary,
		LeakCheckError: snap.LeakCheckError,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = models.ReportFormatJSON
	}
	if err := models.ValidateReportFormat(format); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.session.Snapshot()
	if !snap.HasResults() {
		writeError(w, http.StatusConflict, "no vault has been analyzed")
		return
	}

	report := s.reports.GenerateReport(reporting.ReportInput{
		ID:             snap.ID,
		Source:         snap.Source,
		Items:          snap.Items,
		Summary:        *snap.Summary,
		LeakCheckError: snap.LeakCheckError,
	})

	var buf bytes.Buffer
	if err := s.reports.Render(&buf, report, format); err != nil {
		s.logger.WithError(err).Error("failed to render report")
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	switch format {
	case models.ReportFormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case models.ReportFormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
