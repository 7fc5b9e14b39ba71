package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
	"github.com/xxxsen/bingio/internal/pkg/response"
	"github.com/xxxsen/bingio/internal/retrieval"
	"github.com/xxxsen/bingio/internal/service"
)

func errorText(msg string) string {
	return "[Error: " + msg + "]"
}

// handleChatError writes a failed turn as a plain text body the client shows verbatim.
func handleChatError(c *gin.Context, err error) {
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("chat request failed",
		zap.Any("request_id", requestID),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	var (
		transportErr  *retrieval.TransportError
		generationErr *service.GenerationError
		moderationErr *service.ModerationError
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.AssistantText(c, http.StatusBadRequest, errorText("invalid request"))
	case errors.As(err, &transportErr):
		response.AssistantText(c, http.StatusBadGateway, errorText("catalog search failed at "+transportErr.Stage))
	case errors.As(err, &moderationErr):
		response.AssistantText(c, http.StatusBadGateway, errorText("moderation unavailable"))
	case errors.As(err, &generationErr):
		response.AssistantText(c, http.StatusBadGateway, errorText("generation failed"))
	default:
		response.AssistantText(c, http.StatusInternalServerError, errorText("internal error"))
	}
}
