package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webtestflow/recorder/pkg/response"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// Login exchanges the operator credentials for a token. Without a configured password the
// API is open and there is nothing to log in to.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if !h.auth.Enabled() {
		response.Error(c, 404, "authentication is disabled")
		return
	}
	if !h.auth.CheckCredentials(req.Username, req.Password) {
		h.logger.Warn("Rejected operator login", zap.String("username", req.Username))
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := h.auth.GenerateToken(req.Username)
	if err != nil {
		response.InternalServerError(c, "failed to generate token")
		return
	}
	response.SuccessWithMessage(c, "login successful", LoginResponse{Token: token})
}
