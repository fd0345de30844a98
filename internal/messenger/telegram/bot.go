package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/duet/internal/messenger"
)

// telegramTextLimit is Telegram's hard cap on message length.
const telegramTextLimit = 4096

// pollRetryDelay is the pause after a failed getUpdates call.
const pollRetryDelay = 5 * time.Second

const welcomeText = `Hi! Send me a task and two AI models will work on it together: one plans, one executes, and a reviewer checks the result before you see it.

Commands:
/start - this message
/help  - usage help`

const helpText = `Send any message and I will answer. Longer, task-like requests go through the full planning and review pipeline; short messages get a direct reply.`

// Responder produces a reply for one incoming user message.
type Responder interface {
	Respond(ctx context.Context, userID, text string) (string, error)
}

// Bot long-polls the Telegram API and answers incoming messages through the
// pipeline.
type Bot struct {
	api       TelegramAPI
	responder Responder
}

// NewBot creates a Bot.
func NewBot(api TelegramAPI, responder Responder) *Bot {
	return &Bot{api: api, responder: responder}
}

// Run polls for updates until ctx is cancelled. Poll failures are logged and
// retried; the loop only exits with the context.
func (b *Bot) Run(ctx context.Context) {
	log.Info().Msg("telegram bot started")

	var offset int64
	for {
		updates, err := b.api.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("telegram bot stopped")
				return
			}
			log.Warn().Err(err).Msg("telegram poll failed")

			select {
			case <-ctx.Done():
				return
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	switch strings.SplitN(msg.Text, " ", 2)[0] {
	case "/start":
		b.send(ctx, chatID, welcomeText)
		return
	case "/help":
		b.send(ctx, chatID, helpText)
		return
	}

	userID := chatID
	if msg.From != nil && msg.From.Username != "" {
		userID = msg.From.Username
	}

	reply, err := b.responder.Respond(ctx, userID, msg.Text)
	if err != nil {
		log.Error().Err(err).Str("chat", chatID).Msg("telegram pipeline run failed")
		reply = "Sorry, I could not process that message."
	}

	b.send(ctx, chatID, reply)
}

func (b *Bot) send(ctx context.Context, chatID, text string) {
	for _, chunk := range messenger.Chunk(text, telegramTextLimit) {
		if _, err := b.api.SendMessage(ctx, chatID, chunk); err != nil {
			log.Error().Err(err).Str("chat", chatID).Msg("telegram send failed")
			return
		}
	}
}
