package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/conversation"
	"github.com/xxxsen/bingio/internal/model"
)

func TestStreamConcatenatesChunks(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, chatPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, part := range []string{"Try ", "Amélie ", "[SOURCE 1]."} {
			_, _ = w.Write([]byte(part))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	stream, err := New(srv.URL).Stream(context.Background(), []model.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	text, err := ai.Collect(stream)
	require.NoError(t, err)
	require.Equal(t, "Try Amélie [SOURCE 1].", text)
	require.True(t, got.Stream)
	require.Equal(t, "hi", got.Messages[0].Content)
}

func TestNonSuccessBodySurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("[Error: retrieval embed failed]"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Stream(context.Background(), nil)
	var respErr *conversation.ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, http.StatusBadGateway, respErr.StatusCode)
	require.Equal(t, "[Error: retrieval embed failed]", respErr.Body)
}

func TestNonStreamingJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, req.Stream)
		_, _ = w.Write([]byte(`{"role":"assistant","content":"I don't know.","sources":[]}`))
	}))
	defer srv.Close()

	stream, err := New(srv.URL, WithStreaming(false)).Stream(context.Background(), nil)
	require.NoError(t, err)
	text, err := ai.Collect(stream)
	require.NoError(t, err)
	require.Equal(t, "I don't know.", text)
}

func TestCompletePrefix(t *testing.T) {
	e := []byte("é")
	require.Equal(t, 0, completePrefix(e[:1]))
	require.Equal(t, 2, completePrefix(e))
	require.Equal(t, 2, completePrefix([]byte{'a', 'b', e[0]}))
	require.Equal(t, 3, completePrefix([]byte("abc")))
}
