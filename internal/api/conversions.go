package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/andresfredes/pdf2ppt/internal/convert"
	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/history"
	"github.com/andresfredes/pdf2ppt/internal/observability"
)

// Ledger stores job records. *history.Store implements it.
type Ledger interface {
	convert.Recorder
	Create(ctx context.Context, job domain.ConversionJob) error
	Get(ctx context.Context, id uuid.UUID) (*history.Record, error)
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// ConversionHandler starts conversions and reports on them. It runs at most
// one job at a time.
type ConversionHandler struct {
	logger   *observability.Logger
	builder  convert.JobBuilder
	ledger   Ledger
	defaults domain.ConversionConfig

	busy     atomic.Bool
	inFlight sync.WaitGroup
}

// NewConversionHandler creates a new conversion handler.
func NewConversionHandler(logger *observability.Logger, builder convert.JobBuilder, ledger Ledger, defaults domain.ConversionConfig) *ConversionHandler {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &ConversionHandler{
		logger:   logger,
		builder:  builder,
		ledger:   ledger,
		defaults: defaults,
	}
}

// Busy reports whether a job is in flight.
func (h *ConversionHandler) Busy() bool {
	return h.busy.Load()
}

// Wait blocks until the in-flight job, if any, has finished or ctx is done.
func (h *ConversionHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConversionRequestDTO represents the API request for a conversion. Unset
// options fall back to the server defaults.
type ConversionRequestDTO struct {
	SourcePath        string   `json:"sourcePath"`
	Use16by9Detection *bool    `json:"use16by9Detection,omitempty"`
	ZoomFactor        *float64 `json:"zoomFactor,omitempty"`
	ShowAnnotations   *bool    `json:"showAnnotations,omitempty"`
	ImageFormat       *string  `json:"imageFormat,omitempty"`
	JPEGQuality       *int     `json:"jpegQuality,omitempty"`
}

func (d ConversionRequestDTO) config(defaults domain.ConversionConfig) domain.ConversionConfig {
	cfg := defaults
	if d.Use16by9Detection != nil {
		cfg.Use16by9Detection = *d.Use16by9Detection
	}
	if d.ZoomFactor != nil {
		cfg.ZoomFactor = *d.ZoomFactor
	}
	if d.ShowAnnotations != nil {
		cfg.ShowAnnotations = *d.ShowAnnotations
	}
	if d.ImageFormat != nil {
		cfg.ImageFormat = *d.ImageFormat
	}
	if d.JPEGQuality != nil {
		cfg.JPEGQuality = *d.JPEGQuality
	}
	return cfg
}

// ConversionJobDTO represents a job in API responses.
type ConversionJobDTO struct {
	ID          string                  `json:"id"`
	Status      string                  `json:"status"`
	SourcePath  string                  `json:"sourcePath"`
	OutputPath  string                  `json:"outputPath,omitempty"`
	Pages       int                     `json:"pages,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Config      domain.ConversionConfig `json:"config"`
	CreatedAt   string                  `json:"createdAt"`
	StartedAt   string                  `json:"startedAt,omitempty"`
	CompletedAt string                  `json:"completedAt,omitempty"`
}

func toDTO(rec history.Record) ConversionJobDTO {
	dto := ConversionJobDTO{
		ID:         rec.ID.String(),
		Status:     string(rec.State),
		SourcePath: rec.SourcePath,
		OutputPath: rec.OutputPath,
		Pages:      rec.Pages,
		Error:      rec.ErrorDetail,
		Config:     rec.Config,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.StartedAt != nil {
		dto.StartedAt = rec.StartedAt.Format(time.RFC3339)
	}
	if rec.FinishedAt != nil {
		dto.CompletedAt = rec.FinishedAt.Format(time.RFC3339)
	}
	return dto
}

// Create handles POST /conversions.
func (h *ConversionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var reqDTO ConversionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if strings.TrimSpace(reqDTO.SourcePath) == "" {
		h.writeError(w, http.StatusBadRequest, "sourcePath is required", "")
		return
	}

	cfg := reqDTO.config(h.defaults)
	if err := cfg.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid conversion options", err.Error())
		return
	}

	if !h.busy.CompareAndSwap(false, true) {
		h.writeError(w, http.StatusConflict, "a conversion is already running", "")
		return
	}

	job := domain.NewJob(reqDTO.SourcePath, cfg)
	log := h.logger.WithJob(job.ID.String())

	if err := h.ledger.Create(r.Context(), job); err != nil {
		h.busy.Store(false)
		log.Error().Err(err).Msg("Failed to record conversion")
		h.writeError(w, http.StatusInternalServerError, "failed to record conversion", err.Error())
		return
	}

	h.inFlight.Add(1)
	worker := convert.NewWorker(h.builder, job,
		convert.WithRecorder(h.ledger),
		convert.WithLogger(h.logger),
		convert.OnOutcome(func(o domain.ConversionOutcome) {
			h.busy.Store(false)
			h.inFlight.Done()
		}),
	)

	if _, err := worker.Start(r.Context()); err != nil {
		h.busy.Store(false)
		h.inFlight.Done()
		h.writeError(w, http.StatusInternalServerError, "failed to start conversion", err.Error())
		return
	}

	log.Info().Str("source", job.SourcePath).Msg("Conversion accepted")

	resp := ConversionJobDTO{
		ID:         job.ID.String(),
		Status:     string(domain.StateRunning),
		SourcePath: job.SourcePath,
		OutputPath: job.OutputPath(),
		Config:     cfg,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/conversions/"+resp.ID)
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// Get handles GET /conversions/{jobId}.
func (h *ConversionHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid jobId", err.Error())
		return
	}

	rec, err := h.ledger.Get(r.Context(), jobID)
	if errors.Is(err, history.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "conversion not found", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID.String()).Msg("Failed to load conversion")
		h.writeError(w, http.StatusInternalServerError, "failed to load conversion", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDTO(*rec))
}

// List handles GET /conversions.
func (h *ConversionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	records, err := h.ledger.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list conversions")
		h.writeError(w, http.StatusInternalServerError, "failed to list conversions", err.Error())
		return
	}

	items := make([]ConversionJobDTO, 0, len(records))
	for _, rec := range records {
		items = append(items, toDTO(rec))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversions": items,
		"count":       len(items),
	})
}

func (h *ConversionHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
