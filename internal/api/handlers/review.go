package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/models"
	"webtestflow/recorder/internal/review"
	"webtestflow/recorder/internal/storage"
	"webtestflow/recorder/pkg/auth"
	"webtestflow/recorder/pkg/response"
)

type ReviewResponse struct {
	ReviewID  string        `json:"review_id"`
	SessionID string        `json:"session_id"`
	Steps     []models.Step `json:"steps"`
}

type ChooseIdentifierRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// OpenReview redeems a hand-off ticket and loads the stored recording into a review.
func (h *Handlers) OpenReview(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		response.BadRequest(c, "ticket is required")
		return
	}
	sessionID, err := h.auth.RedeemTicket(ticket)
	if errors.Is(err, auth.ErrTicketUsed) {
		response.Gone(c, "review ticket already used")
		return
	}
	if err != nil {
		response.Unauthorized(c, "invalid review ticket")
		return
	}

	r, err := h.reviews.Load(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(c, "no recording to review")
			return
		}
		if errors.Is(err, storage.ErrSessionMismatch) {
			response.Gone(c, "review ticket belongs to an earlier recording")
			return
		}
		h.logger.Error("Failed to load recording", zap.Error(err))
		response.InternalServerError(c, "failed to load recording")
		return
	}
	response.Success(c, ReviewResponse{ReviewID: r.ID, SessionID: r.SessionID, Steps: r.Steps()})
}

func (h *Handlers) GetReview(c *gin.Context) {
	r, ok := h.review(c)
	if !ok {
		return
	}
	response.Success(c, ReviewResponse{ReviewID: r.ID, SessionID: r.SessionID, Steps: r.Steps()})
}

func (h *Handlers) RemoveStep(c *gin.Context) {
	r, ok := h.review(c)
	if !ok {
		return
	}
	index, ok := stepIndex(c)
	if !ok {
		return
	}
	if err := r.Remove(index); err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "step removed", gin.H{"steps": r.Steps()})
}

func (h *Handlers) ChooseIdentifier(c *gin.Context) {
	r, ok := h.review(c)
	if !ok {
		return
	}
	index, ok := stepIndex(c)
	if !ok {
		return
	}
	var req ChooseIdentifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	switch err := r.ChooseIdentifier(index, req.Kind); {
	case err == nil:
		response.SuccessWithMessage(c, "identifier chosen", nil)
	case errors.Is(err, review.ErrStepNotFound):
		response.NotFound(c, err.Error())
	default:
		response.BadRequest(c, err.Error())
	}
}

// ExportReview downloads the export document as steps.json.
func (h *Handlers) ExportReview(c *gin.Context) {
	r, ok := h.review(c)
	if !ok {
		return
	}
	data, err := json.MarshalIndent(r.Export(), "", "  ")
	if err != nil {
		response.InternalServerError(c, "failed to encode export")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="steps.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (h *Handlers) review(c *gin.Context) (*review.Review, bool) {
	r, err := h.reviews.Get(c.Param("id"))
	if err != nil {
		response.NotFound(c, err.Error())
		return nil, false
	}
	return r, true
}

func stepIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.BadRequest(c, "invalid step index")
		return 0, false
	}
	return index, true
}
