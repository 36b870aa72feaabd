package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/queue"
	"github.com/tanq16/telegrab/internal/session"
	"github.com/tanq16/telegrab/internal/types"
)

// Bot is the chat-facing surface: it turns incoming messages into probe and
// enqueue operations, and implements types.Notifier for everything the
// worker sends back.
type Bot struct {
	api         *tgbotapi.BotAPI
	engine      types.Engine
	sessions    *session.Store
	jobs        *queue.Queue
	pollTimeout int
}

func NewBot(token string, pollTimeout int, engine types.Engine, sessions *session.Store, jobs *queue.Queue) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info().Str("op", "telegram/newBot").Msgf("authorized as @%s", api.Self.UserName)
	return &Bot{
		api:         api,
		engine:      engine,
		sessions:    sessions,
		jobs:        jobs,
		pollTimeout: pollTimeout,
	}, nil
}

// Run consumes the long-poll update stream until the context is cancelled.
// Each update is handled on its own goroutine so a slow probe never stalls
// other users.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)
	log.Info().Str("op", "telegram/run").Msg("listening for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case update.CallbackQuery != nil:
				go b.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil:
				go b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) SendText(chatID int64, replyToID int, text string) (types.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyToID != 0 {
		msg.ReplyToMessageID = replyToID
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return types.MessageRef{}, err
	}
	return types.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditOrReply edits the referenced message in place and falls back to a new
// message when the edit is rejected, so status updates are never lost.
func (b *Bot) EditOrReply(ref types.MessageRef, text string) error {
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	if _, err := b.api.Send(edit); err != nil {
		log.Debug().Str("op", "telegram/editOrReply").Msgf("edit rejected, sending fresh message: %v", err)
		_, err = b.api.Send(tgbotapi.NewMessage(ref.ChatID, text))
		return err
	}
	return nil
}

func (b *Bot) SendMedia(chatID int64, replyToID int, kind types.MediaKind, path, caption string) error {
	var msg tgbotapi.Chattable
	switch kind {
	case types.MediaAudio:
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
		audio.Caption = caption
		if replyToID != 0 {
			audio.ReplyToMessageID = replyToID
		}
		msg = audio
	default:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
		video.Caption = caption
		video.SupportsStreaming = true
		if replyToID != 0 {
			video.ReplyToMessageID = replyToID
		}
		msg = video
	}
	_, err := b.api.Send(msg)
	return err
}
