package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/channel"
	"webtestflow/recorder/internal/models"
	"webtestflow/recorder/pkg/response"
)

type StatusResponse struct {
	Phase     models.Phase `json:"phase"`
	IsPaused  bool         `json:"isPaused"`
	ReviewURL string       `json:"reviewUrl,omitempty"`
}

func toStatus(resp channel.Response) StatusResponse {
	return StatusResponse{Phase: resp.Phase, IsPaused: resp.IsPaused, ReviewURL: resp.ReviewURL}
}

func (h *Handlers) request(c *gin.Context, typ channel.MessageType) (channel.Response, bool) {
	resp, err := h.coord.Request(c.Request.Context(), channel.Message{Type: typ})
	if err != nil {
		h.logger.Error("Coordinator request failed", zap.String("type", string(typ)), zap.Error(err))
		response.InternalServerError(c, "recorder unavailable: "+err.Error())
		return channel.Response{}, false
	}
	return resp, true
}

func (h *Handlers) StartRecording(c *gin.Context) {
	resp, ok := h.request(c, channel.TypeStart)
	if !ok {
		return
	}
	response.SuccessWithMessage(c, "recording started", toStatus(resp))
}

func (h *Handlers) StopRecording(c *gin.Context) {
	resp, ok := h.request(c, channel.TypeStop)
	if !ok {
		return
	}
	response.SuccessWithMessage(c, "recording stopped", toStatus(resp))
}

// PauseRecording pauses a running recording. Unlike the raw toggle it never resumes.
func (h *Handlers) PauseRecording(c *gin.Context) {
	h.toggleFrom(c, models.PhaseRecording, "recording paused")
}

// ResumeRecording resumes a paused recording without clearing its steps.
func (h *Handlers) ResumeRecording(c *gin.Context) {
	h.toggleFrom(c, models.PhasePaused, "recording resumed")
}

func (h *Handlers) toggleFrom(c *gin.Context, from models.Phase, message string) {
	resp, toggled, err := h.coord.ToggleFrom(c.Request.Context(), from)
	if err != nil {
		h.logger.Error("Coordinator request failed", zap.String("from", string(from)), zap.Error(err))
		response.InternalServerError(c, "recorder unavailable: "+err.Error())
		return
	}
	if !toggled {
		response.Conflict(c, "recorder is "+string(resp.Phase))
		return
	}
	response.SuccessWithMessage(c, message, toStatus(resp))
}

func (h *Handlers) GetRecordingStatus(c *gin.Context) {
	resp, ok := h.request(c, channel.TypeStatus)
	if !ok {
		return
	}
	response.Success(c, toStatus(resp))
}

func (h *Handlers) GetRecordingSteps(c *gin.Context) {
	steps, err := h.coord.Steps(c.Request.Context())
	if err != nil {
		response.InternalServerError(c, "recorder unavailable: "+err.Error())
		return
	}
	response.Success(c, gin.H{"steps": steps})
}
