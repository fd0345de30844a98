package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	redisstore "github.com/gosuda/duet/internal/store/redis"
)

// Subscriber delivers payloads published to one channel until the context is
// canceled.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// conversationEvents streams pipeline events for one conversation as
// server-sent events. The stream ends when the client disconnects or the
// subscription closes. A nil subscriber disables the endpoint.
func conversationEvents(events Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if events == nil {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		conversationID := chi.URLParam(r, "conversationID")
		payloads, cleanup, err := events.Subscribe(r.Context(), redisstore.ConversationChannel(conversationID))
		if err != nil {
			log.Warn().Err(err).Str("conversation_id", conversationID).Msg("event subscription failed")
			http.Error(w, "subscription unavailable", http.StatusBadGateway)
			return
		}
		defer cleanup()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case payload, open := <-payloads:
				if !open {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
