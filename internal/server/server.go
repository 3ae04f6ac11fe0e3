package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/medextract/internal/ai"
	"github.com/local/medextract/internal/config"
	"github.com/local/medextract/internal/filetype"
	"github.com/local/medextract/internal/orchestrator"
	"github.com/local/medextract/internal/store"
)

// Processor runs one document through the extraction pipeline.
type Processor interface {
	Process(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error)
}

// Catalog lists available providers.
type Catalog interface {
	Catalog() []ai.ProviderInfo
}

// Server is the HTTP surface: synchronous document upload plus status,
// provider catalog and health endpoints.
type Server struct {
	cfg        config.ServerConfig
	pipeline   Processor
	providers  Catalog
	status     store.StatusStore
	classifier *filetype.Classifier
}

func New(cfg config.ServerConfig, pipeline Processor, providers Catalog, status store.StatusStore) *Server {
	if status == nil {
		status = store.NopStatus{}
	}
	return &Server{
		cfg:        cfg,
		pipeline:   pipeline,
		providers:  providers,
		status:     status,
		classifier: filetype.New(),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/extract", s.handleExtract)
	mux.HandleFunc("/api/status/", s.handleStatus)
	mux.HandleFunc("/api/providers", s.handleProviders)
	mux.HandleFunc("/health", s.handleHealth)
}

// handleExtract accepts a multipart upload and processes it
// synchronously; the response carries the structured document or a
// classified error.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(s.cfg.MaxUploadMB << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	requestID := uuid.NewString()
	path, original, err := s.saveUpload(requestID, hdr.Filename, file)
	if err != nil {
		log.Error().Err(err).Msg("failed to persist upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(path)

	filename := s.repairFilename(hdr.Filename, path)

	req := orchestrator.Request{
		RequestID:    requestID,
		Filename:     filename,
		Path:         path,
		Original:     original,
		Provider:     r.FormValue("provider"),
		Model:        r.FormValue("model"),
		ForceOCR:     parseFormBool(r.FormValue("force_ocr")),
		ExtraContext: r.FormValue("context"),
	}

	outcome, err := s.pipeline.Process(r.Context(), req)
	if err != nil {
		status, kind := classifyError(err)
		log.Warn().Err(err).Str("request_id", requestID).Str("kind", kind).Msg("processing failed")
		writeJSON(w, status, map[string]any{
			"request_id": requestID,
			"error":      kind,
			"detail":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	requestID := strings.TrimPrefix(r.URL.Path, "/api/status/")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "missing request id")
		return
	}
	st, found, err := s.status.Get(r.Context(), requestID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown request id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": requestID, "status": st})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.providers.Catalog()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "medextract",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// saveUpload writes the upload under a request-scoped name and returns
// the path plus the raw bytes for later archiving.
func (s *Server) saveUpload(requestID, filename string, file io.Reader) (string, []byte, error) {
	dir := s.cfg.UploadDir
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}

	ext := filepath.Ext(filepath.Base(filename))
	if strings.ContainsAny(ext, `/\`) || len(ext) > 8 {
		ext = ""
	}
	path := filepath.Join(dir, requestID+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("write upload: %w", err)
	}
	return path, data, nil
}

// repairFilename supplies an extension from the sniffed content when
// the client sent a name without a usable one.
func (s *Server) repairFilename(filename, path string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}
	if filepath.Ext(base) != "" {
		return base
	}
	if ext := s.classifier.ExtensionForContent(path); ext != "" {
		log.Debug().Str("filename", base).Str("ext", ext).Msg("repaired filename from content")
		return base + ext
	}
	return base
}

func classifyError(err error) (int, string) {
	var perr *orchestrator.PipelineError
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError, orchestrator.KindInternal
	}
	switch perr.Kind {
	case orchestrator.KindUnsupported:
		return http.StatusUnsupportedMediaType, perr.Kind
	case orchestrator.KindInsufficientText:
		return http.StatusUnprocessableEntity, perr.Kind
	case orchestrator.KindProviderFailed, orchestrator.KindInvalidOutput:
		return http.StatusBadGateway, perr.Kind
	default:
		return http.StatusInternalServerError, perr.Kind
	}
}

func parseFormBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
