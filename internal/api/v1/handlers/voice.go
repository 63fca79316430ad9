package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "voicepipe/internal/api/errors"
	"voicepipe/internal/api/middleware"
	"voicepipe/internal/api/v1/dto"
	"voicepipe/internal/api/v1/services"
	apperrors "voicepipe/internal/app/errors"
)

// maxBatchSize bounds a single batch transcription request.
const maxBatchSize = 100

// VoiceHandler handles voice recording API endpoints
type VoiceHandler struct {
	service services.VoiceService
}

// NewVoiceHandler creates a new voice recording handler
func NewVoiceHandler(service services.VoiceService) *VoiceHandler {
	return &VoiceHandler{
		service: service,
	}
}

// recordingID reads the :id path parameter and rejects anything that is
// not a well-formed recording identifier before it reaches the service.
func recordingID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		middleware.HandleError(c, apierrors.NewBadRequestError("malformed recording id"))
		return "", false
	}
	return id, true
}

// Upload handles POST /api/voice/upload
//
// @Summary Upload a voice recording
// @Description Accepts a multipart audio file, stores it and creates the recording metadata
// @Tags voice
// @Accept multipart/form-data
// @Produce json
// @Param audio formData file true "Audio file (wav, mp3, m4a, flac, ogg, webm)"
// @Success 201 {object} dto.RecordingResponse "Recording created"
// @Failure 400 {object} apierrors.APIError "Missing file or unsupported format"
// @Failure 413 {object} apierrors.APIError "File exceeds the size limit"
// @Failure 500 {object} apierrors.APIError "Internal server error"
// @Router /voice/upload [post]
func (h *VoiceHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		middleware.HandleError(c, apperrors.ErrMissingFile)
		return
	}
	defer file.Close()

	rec, err := h.service.CreateRecording(c.Request.Context(), middleware.CurrentUser(c), file, header)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToRecordingResponse(rec))
}

// Transcribe handles POST /api/voice/transcribe
//
// @Summary Start transcription of a recording
// @Description Claims the recording for processing and runs transcription asynchronously
// @Tags voice
// @Accept json
// @Produce json
// @Param request body dto.TranscribeRequest true "Transcription request"
// @Success 202 {object} dto.TranscribeResponse "Transcription accepted"
// @Failure 404 {object} apierrors.APIError "Recording not found"
// @Failure 400 {object} apierrors.APIError "Missing recording ID or malformed JSON"
// @Failure 409 {object} apierrors.APIError "Recording already processing or completed"
// @Router /voice/transcribe [post]
func (h *VoiceHandler) Transcribe(c *gin.Context) {
	var req dto.TranscribeRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	if err := h.service.ProcessTranscription(c.Request.Context(), req.RecordingID, req.Provider, req.Language); err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.TranscribeResponse{
		RecordingID: req.RecordingID,
		Status:      "processing",
	})
}

// BatchTranscribe handles POST /api/voice/transcribe/batch
//
// @Summary Start transcription for several recordings
// @Description Claims and processes multiple recordings with bounded concurrency
// @Tags voice
// @Accept json
// @Produce json
// @Param request body dto.BatchTranscribeRequest true "Batch transcription request"
// @Success 202 {array} dto.BatchItemResponse "Per-recording outcomes"
// @Failure 400 {object} apierrors.APIError "Malformed request or batch too large"
// @Router /voice/transcribe/batch [post]
func (h *VoiceHandler) BatchTranscribe(c *gin.Context) {
	var req dto.BatchTranscribeRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}
	if len(req.RecordingIDs) > maxBatchSize {
		middleware.HandleError(c, apierrors.NewBadRequestError("too many recordings in one batch"))
		return
	}

	results := h.service.BatchProcessTranscriptions(c.Request.Context(), req.RecordingIDs, req.Concurrency)

	items := make([]dto.BatchItemResponse, len(results))
	for i, r := range results {
		items[i] = dto.BatchItemResponse{RecordingID: r.RecordingID, Accepted: r.Accepted}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
		}
	}
	c.JSON(http.StatusAccepted, items)
}

// Get handles GET /api/voice/:id
//
// @Summary Get a recording by ID
// @Description Retrieves recording metadata including transcription and quality score
// @Tags voice
// @Produce json
// @Param id path string true "Recording ID"
// @Success 200 {object} dto.RecordingResponse "Recording details"
// @Failure 400 {object} apierrors.APIError "Malformed recording ID"
// @Failure 403 {object} apierrors.APIError "Recording owned by another user"
// @Failure 404 {object} apierrors.APIError "Recording not found"
// @Router /voice/{id} [get]
func (h *VoiceHandler) Get(c *gin.Context) {
	id, ok := recordingID(c)
	if !ok {
		return
	}
	rec, err := h.service.GetRecording(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToRecordingResponse(rec))
}

// List handles GET /api/voice
//
// @Summary List the caller's recordings
// @Description Lists all recordings owned by the authenticated user, newest first
// @Tags voice
// @Produce json
// @Success 200 {array} dto.RecordingResponse "Recordings"
// @Router /voice [get]
func (h *VoiceHandler) List(c *gin.Context) {
	recs, err := h.service.GetRecordingsByUser(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToRecordingResponses(recs))
}

// Segments handles GET /api/voice/:id/segments
//
// @Summary Get transcription segments
// @Description Retrieves the timestamped transcription segments of a recording
// @Tags voice
// @Produce json
// @Param id path string true "Recording ID"
// @Success 200 {array} dto.SegmentResponse "Segments"
// @Failure 400 {object} apierrors.APIError "Malformed recording ID"
// @Failure 404 {object} apierrors.APIError "Recording not found"
// @Router /voice/{id}/segments [get]
func (h *VoiceHandler) Segments(c *gin.Context) {
	id, ok := recordingID(c)
	if !ok {
		return
	}
	segments, err := h.service.GetSegments(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToSegmentResponses(segments))
}

// SignedURL handles GET /api/voice/:id/url
//
// @Summary Get a signed audio download URL
// @Description Issues a short-lived presigned URL for the raw audio object
// @Tags voice
// @Produce json
// @Param id path string true "Recording ID"
// @Success 200 {object} dto.SignedURLResponse "Signed URL"
// @Failure 400 {object} apierrors.APIError "Malformed recording ID"
// @Failure 404 {object} apierrors.APIError "Recording not found"
// @Router /voice/{id}/url [get]
func (h *VoiceHandler) SignedURL(c *gin.Context) {
	id, ok := recordingID(c)
	if !ok {
		return
	}
	url, expiresAt, err := h.service.SignedAudioURL(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SignedURLResponse{URL: url, ExpiresAt: expiresAt})
}

// AnalyzeQuality handles POST /api/voice/quality
//
// @Summary Start quality analysis of a recording
// @Description Runs acoustic quality analysis asynchronously; poll the quality endpoint for results
// @Tags voice
// @Accept json
// @Produce json
// @Param request body dto.AnalyzeQualityRequest true "Analysis request"
// @Success 202 {object} map[string]string "Analysis accepted"
// @Failure 404 {object} apierrors.APIError "Recording not found"
// @Failure 409 {object} apierrors.APIError "Analysis already running"
// @Router /voice/quality [post]
func (h *VoiceHandler) AnalyzeQuality(c *gin.Context) {
	var req dto.AnalyzeQualityRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	if err := h.service.StartQualityAnalysis(c.Request.Context(), req.RecordingID); err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"recordingId": req.RecordingID, "status": "analyzing"})
}

// GetQuality handles GET /api/voice/quality/:id
//
// @Summary Get quality metrics for a recording
// @Description Retrieves the persisted acoustic quality metrics
// @Tags voice
// @Produce json
// @Param id path string true "Recording ID"
// @Success 200 {object} dto.QualityResponse "Quality metrics"
// @Success 202 {object} map[string]string "Analysis still running"
// @Failure 400 {object} apierrors.APIError "Malformed recording ID"
// @Failure 404 {object} apierrors.APIError "No metrics for this recording"
// @Failure 500 {object} apierrors.APIError "Last analysis attempt failed"
// @Router /voice/quality/{id} [get]
func (h *VoiceHandler) GetQuality(c *gin.Context) {
	id, ok := recordingID(c)
	if !ok {
		return
	}
	metrics, err := h.service.GetQualityMetrics(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrMetricsNotFound) && h.service.QualityInFlight(id) {
			c.JSON(http.StatusAccepted, gin.H{"recordingId": id, "status": "analyzing"})
			return
		}
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToQualityResponse(metrics))
}

// UpdateStatus handles PATCH /api/voice/:id/status
//
// @Summary Update a recording's lifecycle status
// @Description Applies a status transition; invalid transitions are rejected
// @Tags voice
// @Accept json
// @Produce json
// @Param id path string true "Recording ID"
// @Param request body dto.UpdateStatusRequest true "New status"
// @Success 200 {object} map[string]string "Status updated"
// @Failure 400 {object} apierrors.APIError "Malformed ID, invalid status or transition"
// @Failure 404 {object} apierrors.APIError "Recording not found"
// @Router /voice/{id}/status [patch]
func (h *VoiceHandler) UpdateStatus(c *gin.Context) {
	id, ok := recordingID(c)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	if err := h.service.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}
