package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
	"github.com/xxxsen/bingio/internal/pkg/errcode"
	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
	"github.com/xxxsen/bingio/internal/pkg/response"
	"github.com/xxxsen/bingio/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Messages []model.ChatMessage `json:"messages"`
	Stream   *bool               `json:"stream"`
}

func (r chatRequest) streaming() bool {
	return r.Stream == nil || *r.Stream
}

type chatResponse struct {
	Role    string               `json:"role"`
	Content string               `json:"content"`
	Sources []service.ChatSource `json:"sources,omitempty"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.AssistantText(c, http.StatusBadRequest, errorText("invalid request"))
		return
	}
	reply, err := h.chat.Chat(c.Request.Context(), req.Messages)
	if err != nil {
		handleChatError(c, err)
		return
	}
	defer reply.Stream.Close()
	if !req.streaming() {
		text, err := ai.Collect(reply.Stream)
		if err != nil {
			handleChatError(c, err)
			return
		}
		c.JSON(http.StatusOK, chatResponse{Role: model.RoleAssistant, Content: text, Sources: reply.Sources})
		return
	}
	h.stream(c, reply.Stream)
}

// stream holds the status line back until the first increment so a failure
// before any text can still be reported with a non-2xx status.
func (h *ChatHandler) stream(c *gin.Context, s ai.TextStream) {
	first, err := s.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		handleChatError(c, err)
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	if errors.Is(err, io.EOF) {
		return
	}
	if !h.write(c, first) {
		return
	}
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if c.Request.Context().Err() != nil {
				return
			}
			logutil.GetLogger(c.Request.Context()).Error("generation interrupted", zap.Error(err))
			h.write(c, "\n\n"+model.GenerationInterruptedText)
			return
		}
		if !h.write(c, chunk) {
			return
		}
	}
}

func (h *ChatHandler) write(c *gin.Context, chunk string) bool {
	if chunk == "" {
		return true
	}
	if _, err := io.WriteString(c.Writer, chunk); err != nil {
		logutil.GetLogger(c.Request.Context()).Warn("write chat chunk failed", zap.Error(err))
		return false
	}
	c.Writer.Flush()
	return true
}

type searchMatch struct {
	Index   int     `json:"index"`
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Type    string  `json:"type,omitempty"`
	Genre   string  `json:"genre,omitempty"`
	Year    string  `json:"year,omitempty"`
	Score   float32 `json:"score"`
	Snippet string  `json:"snippet"`
}

func (h *ChatHandler) Search(c *gin.Context) {
	gctx, err := h.chat.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		if appErr.IsInvalid(err) {
			response.Error(c, errcode.ErrInvalid, "invalid request")
			return
		}
		logutil.GetLogger(c.Request.Context()).Error("catalog search failed", zap.Error(err))
		response.Error(c, errcode.ErrCatalogUnavailable, "catalog unavailable")
		return
	}
	matches := make([]searchMatch, 0, len(gctx.Sources))
	for _, src := range gctx.Sources {
		md := src.Entry.Metadata
		matches = append(matches, searchMatch{
			Index:   src.Index,
			ID:      src.Entry.SourceID(),
			Title:   md.Title,
			Type:    md.Type,
			Genre:   md.Genre,
			Year:    md.Year,
			Score:   src.Score,
			Snippet: src.Entry.Snippet(),
		})
	}
	response.Success(c, gin.H{"query": gctx.Query, "matches": matches})
}

func Healthz(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
