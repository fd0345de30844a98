package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/duet/internal/messenger"
)

// replyTimeout bounds how long a backgrounded pipeline run may take before
// the Slack reply is abandoned.
const replyTimeout = 5 * time.Minute

// slackTextLimit is a conservative cap below Slack's 40k message limit to
// keep replies readable.
const slackTextLimit = 4000

// mentionPattern strips the leading bot mention from app_mention events.
var mentionPattern = regexp.MustCompile(`^<@[A-Z0-9]+>\s*`) //nolint:gochecknoglobals // compiled once

// Responder produces a reply for one incoming user message.
type Responder interface {
	Respond(ctx context.Context, userID, text string) (string, error)
}

// Handler processes Slack Events API webhooks. Events are acknowledged
// immediately; the pipeline runs in the background and replies in-thread.
type Handler struct {
	signingSecret string
	responder     Responder
	sender        messenger.Messenger
}

// NewHandler creates a Slack webhook handler.
func NewHandler(signingSecret string, responder Responder, sender messenger.Messenger) *Handler {
	return &Handler{
		signingSecret: signingSecret,
		responder:     responder,
		sender:        sender,
	}
}

// slackEvent represents the outer envelope of Slack Events API payloads.
type slackEvent struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// innerEvent represents the inner event within an event_callback.
type innerEvent struct {
	Type        string `json:"type"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type,omitempty"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts,omitempty"`
	Text        string `json:"text"`
	User        string `json:"user"`
	BotID       string `json:"bot_id,omitempty"`
}

// HandleEvents is an http.HandlerFunc for POST /slack/events.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if verifyErr := h.verifySignature(r.Header, body); verifyErr != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var envelope slackEvent
	if unmarshalErr := json.Unmarshal(body, &envelope); unmarshalErr != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch envelope.Type {
	case "url_verification":
		h.handleURLVerification(w, envelope.Challenge)
	case "event_callback":
		h.handleEventCallback(w, envelope.Event)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// handleURLVerification responds to Slack's URL verification challenge.
func (h *Handler) handleURLVerification(w http.ResponseWriter, challenge string) {
	w.Header().Set("Content-Type", "application/json")

	resp := map[string]string{"challenge": challenge}
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		log.Error().Err(encodeErr).Msg("encode url verification response")
	}
}

// handleEventCallback acknowledges the event and runs the pipeline in the
// background. Slack retries events not acknowledged within three seconds.
func (h *Handler) handleEventCallback(w http.ResponseWriter, rawEvent json.RawMessage) {
	var evt innerEvent
	if unmarshalErr := json.Unmarshal(rawEvent, &evt); unmarshalErr != nil {
		http.Error(w, "invalid event JSON", http.StatusBadRequest)
		return
	}

	if !shouldRespond(evt) {
		w.WriteHeader(http.StatusOK)
		return
	}

	go h.respond(evt)

	w.WriteHeader(http.StatusOK)
}

// shouldRespond filters events to direct messages and bot mentions from
// humans.
func shouldRespond(evt innerEvent) bool {
	if evt.BotID != "" || evt.User == "" {
		return false
	}
	if evt.Type == "app_mention" {
		return true
	}
	return evt.Type == "message" && evt.ChannelType == "im"
}

func (h *Handler) respond(evt innerEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	text := strings.TrimSpace(mentionPattern.ReplaceAllString(evt.Text, ""))

	reply, err := h.responder.Respond(ctx, evt.User, text)
	if err != nil {
		log.Error().Err(err).Str("user", evt.User).Msg("slack pipeline run failed")
		reply = "Sorry, I could not process that message."
	}

	parent := evt.ThreadTS
	if parent == "" {
		parent = evt.TS
	}

	for _, chunk := range messenger.Chunk(reply, slackTextLimit) {
		if _, sendErr := h.sender.Reply(ctx, evt.Channel, messenger.MessageID(parent), chunk); sendErr != nil {
			log.Error().Err(sendErr).Str("channel", evt.Channel).Msg("slack reply failed")
			return
		}
	}
}

// verifySignature validates the Slack request signature using the signing
// secret.
func (h *Handler) verifySignature(header http.Header, body []byte) error {
	sv, err := slacklib.NewSecretsVerifier(header, h.signingSecret)
	if err != nil {
		return fmt.Errorf("slack.Handler.verifySignature: create verifier: %w", err)
	}

	if _, writeErr := sv.Write(body); writeErr != nil {
		return fmt.Errorf("slack.Handler.verifySignature: write body: %w", writeErr)
	}

	if ensureErr := sv.Ensure(); ensureErr != nil {
		return fmt.Errorf("slack.Handler.verifySignature: ensure: %w", ensureErr)
	}

	return nil
}
