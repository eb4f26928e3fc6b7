package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imagetrace/backend/internal/domain"
	"github.com/imagetrace/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analysis       *usecase.AnalysisService
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(analysis *usecase.AnalysisService, maxUploadBytes int64, log zerolog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		analysis:       analysis,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("component", "http").Logger(),
	}
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// AnalyzeRequest is the JSON body for analysing an image by URL
type AnalyzeRequest struct {
	ImageURL string `json:"imageUrl" binding:"required"`
}

// URLRequest names a single result URL
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// LoadMoreResponse is the view after a load-more request
type LoadMoreResponse struct {
	usecase.SessionView
	Loaded bool `json:"loaded"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "imagetrace-backend",
		"version": "1.0.0",
	})
}

// CreateAnalysis runs web detection for a JSON {imageUrl} body or a multipart "image" upload
func (h *Handler) CreateAnalysis(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		session *usecase.Session
		err     error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		content, readErr := h.readUpload(c)
		if readErr != nil {
			h.respondError(c, readErr)
			return
		}
		session, err = h.analysis.AnalyzeImage(ctx, content)
	} else {
		var req AnalyzeRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, bindErr))
			return
		}
		session, err = h.analysis.AnalyzeURL(ctx, req.ImageURL)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session.View())
}

func (h *Handler) readUpload(c *gin.Context) ([]byte, error) {
	// Leave room for the multipart envelope around the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrImageTooLarge
		}
		return nil, fmt.Errorf("%w: multipart field \"image\" is required", domain.ErrInvalidRequest)
	}
	if header.Size > h.maxUploadBytes {
		return nil, domain.ErrImageTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return content, nil
}

// GetAnalysis returns the current view of a session
func (h *Handler) GetAnalysis(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// UpdateOptions merges a partial options update
func (h *Handler) UpdateOptions(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var patch domain.FilterOptionsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	c.JSON(http.StatusOK, session.UpdateOptions(patch))
}

// ClearOptions resets a session's options to defaults
func (h *Handler) ClearOptions(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.ClearOptions())
}

// LoadMore reveals the next page of pages.
// With ?sentinel=1 the request is a visibility signal; near=0 reports the sentinel out of view.
func (h *Handler) LoadMore(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if c.Query("sentinel") == "1" {
		view, loaded := session.Signal(c.DefaultQuery("near", "1") != "0")
		c.JSON(http.StatusOK, LoadMoreResponse{SessionView: view, Loaded: loaded})
		return
	}

	view, loaded := session.LoadMore()
	c.JSON(http.StatusOK, LoadMoreResponse{SessionView: view, Loaded: loaded})
}

// RefreshAnalysis re-runs web detection for the session's image
func (h *Handler) RefreshAnalysis(c *gin.Context) {
	session, err := h.analysis.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// GetState exports the session's options and saved/reviewed sets
func (h *Handler) GetState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.State())
}

// PutState imports previously exported session state
func (h *Handler) PutState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var state usecase.SessionState
	if err := c.ShouldBindJSON(&state); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	c.JSON(http.StatusOK, session.RestoreState(state))
}

// GetGroups returns the filtered pages grouped per the session's groupBy option
func (h *Handler) GetGroups(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"groupBy": session.Options().GroupBy,
		"groups":  session.Groups(),
	})
}

// ToggleSaved flips the saved flag of a result URL
func (h *Handler) ToggleSaved(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": req.URL, "saved": session.ToggleSaved(req.URL)})
}

// MarkReviewed marks a result URL as reviewed
func (h *Handler) MarkReviewed(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	session.MarkReviewed(req.URL)
	c.JSON(http.StatusOK, gin.H{"url": req.URL, "reviewed": true})
}

// ExportCSV downloads the filtered results as CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := session.WriteCSV(&buf); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"imagetrace-%s.csv\"", session.ID()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// CreateBetaSignup records a beta-signup lead
func (h *Handler) CreateBetaSignup(c *gin.Context) {
	var signup domain.BetaSignup
	if err := c.ShouldBindJSON(&signup); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	if err := h.analysis.RecordSignup(c.Request.Context(), signup); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}

// GetStats returns usage counters
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.analysis.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) session(c *gin.Context) (*usecase.Session, bool) {
	session, err := h.analysis.Session(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return session, true
}

// respondError maps domain errors onto HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := statusForError(err)
	_ = c.Error(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "image_too_large"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrVisionUnavailable):
		return http.StatusServiceUnavailable, "vision_unavailable"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrVisionAPIFailure):
		return http.StatusBadGateway, "vision_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
