package server

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/vladfi1/SlippiDump/internal/logger"
	"github.com/vladfi1/SlippiDump/pkg/registry"
	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// multipartMemoryLimit is how much of a parsed upload is held in
// memory before spilling to a temp file.
const multipartMemoryLimit = 32 << 20

// uploadResponse is returned for single-item uploads.
type uploadResponse struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	StoredSize int64  `json:"stored_size"`
}

// reportResponse is returned for archive uploads and raw processing.
type reportResponse struct {
	Admitted   []uploadResponse  `json:"admitted"`
	Rejections []rejectionDetail `json:"rejections"`
}

type rejectionDetail struct {
	Name    string `json:"name,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// handleUpload admits a single .slp replay or expands a zip archive
// inline, depending on the uploaded filename.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	database, file, header, ok := s.openUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	name := path.Base(header.Filename)

	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		report, err := s.engine.IngestArchive(r.Context(), database, file, header.Size)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toReportResponse(report.Admitted, report.Rejections))
		return
	}

	rec, err := s.engine.IngestItem(r.Context(), database, name, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toUploadResponse(rec))
}

// handleUploadRaw stores an archive container as-is for later
// processing.
func (s *Server) handleUploadRaw(w http.ResponseWriter, r *http.Request) {
	database, file, header, ok := s.openUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rec, err := s.engine.IngestRaw(r.Context(), database, path.Base(header.Filename), file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toUploadResponse(rec))
}

// handleProcess expands a previously stored raw container.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	database := r.FormValue("db")
	key := r.FormValue("key")
	if err := registry.ValidateDatabaseName(database); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "bad_request", Message: err.Error()})
		return
	}
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "bad_request", Message: "key is required"})
		return
	}

	report, err := s.engine.ProcessRaw(r.Context(), database, key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toReportResponse(report.Admitted, report.Rejections))
}

// handleStats reports a database's limits and current usage.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	database := r.URL.Query().Get("db")
	if err := registry.ValidateDatabaseName(database); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "bad_request", Message: err.Error()})
		return
	}

	limits, err := s.registry.Limits(r.Context(), database)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"params":        limits.Params,
		"current_files": limits.CurrentFiles,
		"current_bytes": limits.CurrentBytes,
	})
}

// handlePurge removes a database and all its stored replays.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	database := r.PathValue("db")
	if err := registry.ValidateDatabaseName(database); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "bad_request", Message: err.Error()})
		return
	}

	if err := s.engine.PurgeDatabase(r.Context(), database); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// openUpload parses the multipart form and returns the database name
// and uploaded file. On failure it writes the error response and
// returns ok=false.
func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) (string, multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "bad_request", Message: "invalid multipart form"})
		return "", nil, nil, false
	}

	database := r.FormValue("db")
	if err := registry.ValidateDatabaseName(database); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "bad_request", Message: err.Error()})
		return "", nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "bad_request", Message: "file field is required"})
		return "", nil, nil, false
	}

	return database, file, header, true
}

// writeError maps an ingestion error to an HTTP response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if rej, ok := replay.AsRejection(err); ok {
		s.writeJSON(w, statusForReason(rej.Reason), errorResponse{
			Reason:  string(rej.Reason),
			Message: rej.Error(),
		})
		return
	}

	if errors.Is(err, registry.ErrInvalidName) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Reason:  "bad_request",
			Message: err.Error(),
		})
		return
	}

	logger.Error("request failed: %v", err)
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Reason:  "internal",
		Message: "internal server error",
	})
}

func statusForReason(reason replay.Reason) int {
	switch reason {
	case replay.UnsupportedKind:
		return http.StatusUnsupportedMediaType
	case replay.TooSmall:
		return http.StatusUnprocessableEntity
	case replay.TooLarge:
		return http.StatusRequestEntityTooLarge
	case replay.Duplicate:
		return http.StatusConflict
	case replay.QuotaExceeded:
		return http.StatusForbidden
	case replay.CorruptArchive:
		return http.StatusBadRequest
	case replay.StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("failed to encode response: %v", err)
	}
}

func toUploadResponse(rec *replay.Record) uploadResponse {
	return uploadResponse{
		Key:        rec.Key,
		Name:       rec.Name,
		Kind:       string(rec.Kind),
		StoredSize: rec.StoredSize,
	}
}

func toReportResponse(admitted []replay.Record, rejections []*replay.RejectionError) reportResponse {
	resp := reportResponse{
		Admitted:   make([]uploadResponse, 0, len(admitted)),
		Rejections: make([]rejectionDetail, 0, len(rejections)),
	}
	for i := range admitted {
		resp.Admitted = append(resp.Admitted, toUploadResponse(&admitted[i]))
	}
	for _, rej := range rejections {
		resp.Rejections = append(resp.Rejections, rejectionDetail{
			Name:    rej.Name,
			Reason:  string(rej.Reason),
			Message: rej.Message,
		})
	}
	return resp
}
