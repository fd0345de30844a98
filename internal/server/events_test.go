package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber replays canned payloads and records the subscribed channel.
type fakeSubscriber struct {
	channel  string
	payloads [][]byte
	err      error
	cleaned  bool
}

func (f *fakeSubscriber) Subscribe(_ context.Context, channel string) (<-chan []byte, func(), error) {
	f.channel = channel
	if f.err != nil {
		return nil, nil, f.err
	}

	out := make(chan []byte, len(f.payloads))
	for _, p := range f.payloads {
		out <- p
	}
	close(out)

	return out, func() { f.cleaned = true }, nil
}

func newEventsRouter(events Subscriber) chi.Router {
	router := chi.NewRouter()
	router.Get("/api/conversations/{conversationID}/events", conversationEvents(events))
	return router
}

func TestConversationEventsStream(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscriber{payloads: [][]byte{[]byte(`{"status":"success"}`)}}
	router := newEventsRouter(sub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/alice_20250314_150926_a1b2c3d4/events", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "conversation:alice_20250314_150926_a1b2c3d4", sub.channel)
	assert.Contains(t, rec.Body.String(), "data: {\"status\":\"success\"}\n\n")
	assert.True(t, sub.cleaned, "the subscription must be released when the stream ends")
}

func TestConversationEventsWithoutSubscriber(t *testing.T) {
	t.Parallel()

	router := newEventsRouter(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/some-id/events", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestConversationEventsSubscribeFailure(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscriber{err: errors.New("redis down")}
	router := newEventsRouter(sub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/some-id/events", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
