package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	channelTelegram       = "telegram"
	harvestCallbackPrefix = "harvest_"
)

type TelegramSender struct {
	bot          *tgbotapi.BotAPI
	dashboardURL string
}

// NewTelegramSender authenticates the bot token against endpoint
// (a "…/bot%s/%s" format string). A nil client gets a 30s timeout client.
func NewTelegramSender(token, endpoint string, client *http.Client, dashboardURL string) (*TelegramSender, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	return &TelegramSender{bot: bot, dashboardURL: dashboardURL}, nil
}

func (s *TelegramSender) BotUsername() string {
	return s.bot.Self.UserName
}

func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	chattable, err := s.buildMessage(msg)
	if err != nil {
		return &DeliveryError{Channel: channelTelegram, ChatID: msg.ChatID, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return &DeliveryError{Channel: channelTelegram, ChatID: msg.ChatID, Transient: true, Err: err}
	}

	// The bot API has no context support; the http client timeout bounds the call.
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(chattable)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return &DeliveryError{Channel: channelTelegram, ChatID: msg.ChatID, Transient: true, Err: ctx.Err()}
	case err := <-done:
		if err == nil {
			return nil
		}
		return &DeliveryError{Channel: channelTelegram, ChatID: msg.ChatID, Transient: transientTelegramError(err), Err: err}
	}
}

func (s *TelegramSender) buildMessage(msg Message) (tgbotapi.MessageConfig, error) {
	chat := strings.TrimSpace(msg.ChatID)

	var out tgbotapi.MessageConfig
	switch {
	case strings.HasPrefix(chat, "@"):
		out = tgbotapi.NewMessageToChannel(chat, msg.Text)
	default:
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return out, fmt.Errorf("invalid telegram chat id %q", msg.ChatID)
		}
		out = tgbotapi.NewMessage(id, msg.Text)
	}

	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true

	var rows [][]tgbotapi.InlineKeyboardButton
	if s.dashboardURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Open farm", s.dashboardURL),
		))
	}
	if msg.CropID != 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Harvested", HarvestCallbackData(msg.CropID)),
		))
	}
	if len(rows) > 0 {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	return out, nil
}

// HarvestCallbackData is the callback payload of the "harvested" button.
func HarvestCallbackData(cropID uint) string {
	return harvestCallbackPrefix + strconv.FormatUint(uint64(cropID), 10)
}

// ParseHarvestCallback extracts the crop id from a "harvested" button press.
func ParseHarvestCallback(data string) (uint, bool) {
	raw, ok := strings.CutPrefix(data, harvestCallbackPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Reply sends a plain HTML message to a chat that wrote to the bot.
func (s *TelegramSender) Reply(chatID int64, text string) error {
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true
	if _, err := s.bot.Send(out); err != nil {
		return &DeliveryError{Channel: channelTelegram, ChatID: strconv.FormatInt(chatID, 10), Transient: transientTelegramError(err), Err: err}
	}
	return nil
}

// EditText replaces the text of a message the bot sent earlier and drops its
// buttons, keeping the dashboard link when one is configured.
func (s *TelegramSender) EditText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if s.dashboardURL != "" {
		markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Open farm", s.dashboardURL),
		))
		edit.ReplyMarkup = &markup
	}
	if _, err := s.bot.Send(edit); err != nil {
		return &DeliveryError{Channel: channelTelegram, ChatID: strconv.FormatInt(chatID, 10), Transient: transientTelegramError(err), Err: err}
	}
	return nil
}

// AnswerCallback clears the loading state of a pressed button.
func (s *TelegramSender) AnswerCallback(callbackID, text string) error {
	if _, err := s.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return &DeliveryError{Channel: channelTelegram, Transient: transientTelegramError(err), Err: err}
	}
	return nil
}

// Rate limits and server side failures are worth retrying; a blocked bot or
// unknown chat is not.
func transientTelegramError(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}
