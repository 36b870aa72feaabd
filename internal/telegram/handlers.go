package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/catalog"
	"github.com/tanq16/telegrab/internal/queue"
	"github.com/tanq16/telegrab/internal/types"
)

const callbackPrefix = "fmt:"

const helpText = `Send me a link to a video or playlist and I will fetch it for you.

How it works:
1. Paste a link from any supported site
2. Pick a format from the menu
3. Wait for the file or a download link

Commands:
/start - show this message
/help - show this message`

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	if message.IsCommand() {
		switch message.Command() {
		case "start", "help":
			b.SendText(message.Chat.ID, 0, helpText)
		default:
			b.SendText(message.Chat.ID, message.MessageID, "Unknown command, try /help.")
		}
		return
	}
	link := strings.TrimSpace(message.Text)
	if !isSupportedLink(link) {
		b.SendText(message.Chat.ID, message.MessageID, "That doesn't look like a link. Send me an http(s) URL, or /help for usage.")
		return
	}
	b.handleLink(ctx, message, link)
}

func isSupportedLink(text string) bool {
	parsed, err := url.Parse(text)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func (b *Bot) handleLink(ctx context.Context, message *tgbotapi.Message, link string) {
	chatID := message.Chat.ID
	requester := message.From.ID
	statusRef, err := b.SendText(chatID, message.MessageID, "🔍 Checking the link...")
	if err != nil {
		log.Error().Str("op", "telegram/handleLink").Msgf("error sending ack: %v", err)
		return
	}

	result, err := b.engine.Probe(ctx, link)
	if err != nil {
		b.EditOrReply(statusRef, fmt.Sprintf("❌ Could not read that link:\n%v", err))
		return
	}

	if result.Collection != nil {
		b.enqueueCollection(statusRef, message, link, result.Collection)
		return
	}

	options := catalog.Build(result.Item.Formats)
	if len(options) == 0 {
		b.EditOrReply(statusRef, "❌ No downloadable format found for that link.")
		return
	}

	b.sessions.Open(requester, link, result.Item.Title, statusRef, options)
	menu := buildMenu(options)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, statusRef.MessageID,
		fmt.Sprintf("🎬 %s\n\nPick a format:", result.Item.Title), menu)
	if _, err := b.api.Send(edit); err != nil {
		log.Error().Str("op", "telegram/handleLink").Msgf("error showing menu: %v", err)
		b.sessions.Invalidate(requester)
		b.EditOrReply(statusRef, "❌ Could not show the format menu, please try again.")
	}
}

// enqueueCollection skips format selection: every entry goes straight to
// the queue with the best-effort selector.
func (b *Bot) enqueueCollection(statusRef types.MessageRef, message *tgbotapi.Message, link string, coll *types.CollectionInfo) {
	queued := 0
	for _, entry := range coll.Entries {
		job := &types.Job{
			ID:           uuid.New().String()[:8],
			RequesterKey: message.From.ID,
			ChatID:       message.Chat.ID,
			ReplyToID:    message.MessageID,
			SourceURL:    entry.URL,
			Selector:     catalog.SelectorBest,
			Title:        entry.Title,
			IsPlaylist:   true,
		}
		if _, err := b.jobs.Enqueue(job); err != nil {
			if errors.Is(err, queue.ErrClosed) {
				b.EditOrReply(statusRef, "❌ The bot is shutting down, please try again later.")
				return
			}
			log.Error().Str("op", "telegram/enqueueCollection").Msgf("error enqueuing %s: %v", entry.URL, err)
			continue
		}
		queued++
	}
	title := coll.Title
	if title == "" {
		title = link
	}
	b.EditOrReply(statusRef, fmt.Sprintf("📋 Queued %d items from %s. Each will be delivered as it finishes.", queued, title))
}

func buildMenu(options []catalog.Option) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, opt := range options {
		button := tgbotapi.NewInlineKeyboardButtonData(opt.Label, callbackPrefix+opt.ID)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	b.api.Send(tgbotapi.NewCallback(callback.ID, ""))
	if callback.Message == nil || !strings.HasPrefix(callback.Data, callbackPrefix) {
		return
	}
	chosenID := strings.TrimPrefix(callback.Data, callbackPrefix)
	requester := callback.From.ID
	chatID := callback.Message.Chat.ID

	sess, opt, err := b.sessions.Resolve(requester, chosenID)
	if err != nil {
		b.EditOrReply(types.MessageRef{ChatID: chatID, MessageID: callback.Message.MessageID},
			"⌛ That menu has expired. Send the link again to get a fresh one.")
		return
	}

	job := &types.Job{
		ID:           uuid.New().String()[:8],
		RequesterKey: requester,
		ChatID:       chatID,
		ReplyToID:    callback.Message.MessageID,
		SourceURL:    sess.SourceURL,
		Selector:     opt.Selector,
		Title:        sess.Title,
		IsAudioOnly:  opt.AudioOnly,
	}
	position, err := b.jobs.Enqueue(job)
	if err != nil {
		b.EditOrReply(sess.MenuRef, "❌ The bot is shutting down, please try again later.")
		return
	}
	log.Debug().Str("op", "telegram/handleCallback").Msgf("queued job %s (%s) for requester %d", job.ID, opt.Label, requester)
	b.EditOrReply(sess.MenuRef, fmt.Sprintf("✅ Queued %s (%s) at position %d.", sess.Title, opt.Label, position))
}
