package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/h4ks-com/crop-notifier/internal/auth"
	"github.com/h4ks-com/crop-notifier/internal/notifier"
	"github.com/h4ks-com/crop-notifier/internal/services"
	"github.com/rs/zerolog"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// ChatBot is the part of the Telegram client the webhook answers through.
type ChatBot interface {
	Reply(chatID int64, text string) error
	EditText(chatID int64, messageID int, text string) error
	AnswerCallback(callbackID, text string) error
}

type TelegramHandler struct {
	bot         ChatBot
	userService *services.UserService
	cropService *services.CropService
	linkCodes   *auth.TokenIssuer
	secret      string
	logger      zerolog.Logger
}

func NewTelegramHandler(
	bot ChatBot,
	userService *services.UserService,
	cropService *services.CropService,
	linkCodes *auth.TokenIssuer,
	secret string,
	logger zerolog.Logger,
) *TelegramHandler {
	return &TelegramHandler{
		bot:         bot,
		userService: userService,
		cropService: cropService,
		linkCodes:   linkCodes,
		secret:      secret,
		logger:      logger.With().Str("component", "telegram_webhook").Logger(),
	}
}

// Webhook godoc
// @Summary Telegram webhook
// @Description Receives bot updates: chat commands and inline button presses
// @Tags telegram
// @Accept json
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /telegram/webhook [post]
func (h *TelegramHandler) Webhook(c *gin.Context) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(secretTokenHeader)), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid secret token"})
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid update: " + err.Error()})
		return
	}

	logger := h.logger.With().Int("update_id", update.UpdateID).Logger()
	// Failures are reported in the chat; a non-2xx answer would only make
	// Telegram redeliver the same update.
	switch {
	case update.Message != nil:
		if err := h.handleMessage(c.Request.Context(), update.Message); err != nil {
			logger.Warn().Err(err).Int64("chat_id", update.Message.Chat.ID).Msg("failed to answer command")
		}
	case update.CallbackQuery != nil:
		if err := h.handleCallback(update.CallbackQuery); err != nil {
			logger.Warn().Err(err).Str("data", update.CallbackQuery.Data).Msg("failed to answer button press")
		}
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "ok"})
}

func (h *TelegramHandler) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID

	var text string
	switch msg.Command() {
	case "start":
		text = startText
	case "help":
		text = helpText
	case "link":
		text = h.link(chatID, msg.From, strings.TrimSpace(msg.CommandArguments()))
	case "status":
		text = h.status(ctx, chatID)
	case "settings":
		text = h.settings(chatID, strings.ToLower(strings.TrimSpace(msg.CommandArguments())))
	case "unlink":
		text = h.unlink(chatID)
	default:
		text = "❓ Unknown command. Send /help for the list of commands."
	}
	return h.bot.Reply(chatID, text)
}

func (h *TelegramHandler) link(chatID int64, from *tgbotapi.User, code string) string {
	if code == "" {
		return "Usage: /link &lt;code&gt;\nGet a code from your profile page on the website."
	}
	claims, err := h.linkCodes.ValidateLinkCode(code)
	if err != nil {
		return "❌ That link code is invalid or has expired. Request a new one on the website."
	}

	var telegramUsername string
	if from != nil {
		telegramUsername = from.UserName
	}
	user, err := h.userService.LinkTelegram(claims.Username, strconv.FormatInt(chatID, 10), telegramUsername)
	switch {
	case errors.Is(err, services.ErrChatAlreadyLinked):
		return "❌ This chat is linked to another account. Send /unlink first."
	case err != nil:
		h.logger.Error().Err(err).Str("username", claims.Username).Msg("failed to link chat")
		return genericFailureText
	}
	return fmt.Sprintf("✅ Linked to <b>%s</b>.\nYou will get a message here when your crops are ready.",
		html.EscapeString(user.Username))
}

func (h *TelegramHandler) status(ctx context.Context, chatID int64) string {
	user, err := h.userService.FindByChat(strconv.FormatInt(chatID, 10))
	if err != nil {
		return h.lookupFailure(err)
	}
	counts, err := h.cropService.Overview(ctx, user.Username)
	if err != nil {
		h.logger.Error().Err(err).Uint("user_id", user.ID).Msg("failed to load overview")
		return genericFailureText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s</b>\n\n", html.EscapeString(user.Username))
	fmt.Fprintf(&b, "🌱 Planted: %d\n", counts.Total)
	fmt.Fprintf(&b, "⏰ Ready to harvest: %d\n", counts.Ready)
	fmt.Fprintf(&b, "🌿 Growing: %d\n", counts.Growing)
	fmt.Fprintf(&b, "🧺 Harvested: %d", counts.Harvested)
	return b.String()
}

// settings shows the notification switch and active crops; "on" or "off"
// flips the switch first.
func (h *TelegramHandler) settings(chatID int64, arg string) string {
	user, err := h.userService.FindByChat(strconv.FormatInt(chatID, 10))
	if err != nil {
		return h.lookupFailure(err)
	}

	switch arg {
	case "":
	case "on", "off":
		if user, err = h.userService.SetNotificationsEnabled(user.Username, arg == "on"); err != nil {
			h.logger.Error().Err(err).Msg("failed to change notification setting")
			return genericFailureText
		}
	default:
		return "Usage: /settings [on|off]"
	}

	crops, err := h.cropService.ListCrops(user.Username, false)
	if err != nil {
		h.logger.Error().Err(err).Uint("user_id", user.ID).Msg("failed to list crops")
		return genericFailureText
	}

	state := "off"
	if user.NotificationsEnabled {
		state = "on"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚙️ Settings for <b>%s</b>\n\nNotifications: %s\n\n", html.EscapeString(user.Username), state)
	if len(crops) == 0 {
		b.WriteString("📝 Nothing planted yet.")
		return b.String()
	}
	b.WriteString("🌱 Your crops:\n")
	for _, crop := range crops {
		mark := "⏰"
		if crop.NotificationSent {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, html.EscapeString(crop.CropType.Name))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *TelegramHandler) unlink(chatID int64) string {
	if _, err := h.userService.UnlinkChat(strconv.FormatInt(chatID, 10)); err != nil {
		return h.lookupFailure(err)
	}
	return "✅ Unlinked. You will no longer get harvest notifications.\nSend /link to link again."
}

func (h *TelegramHandler) lookupFailure(err error) string {
	if errors.Is(err, services.ErrTelegramNotLinked) {
		return notLinkedText
	}
	h.logger.Error().Err(err).Msg("failed to resolve chat")
	return genericFailureText
}

// handleCallback serves the "harvested" button on harvest-ready messages.
func (h *TelegramHandler) handleCallback(cb *tgbotapi.CallbackQuery) error {
	cropID, ok := notifier.ParseHarvestCallback(cb.Data)
	if !ok || cb.Message == nil || cb.Message.Chat == nil {
		return h.bot.AnswerCallback(cb.ID, "Unknown action")
	}
	chatID := cb.Message.Chat.ID

	user, err := h.userService.FindByChat(strconv.FormatInt(chatID, 10))
	if err != nil {
		if !errors.Is(err, services.ErrTelegramNotLinked) {
			h.logger.Error().Err(err).Msg("failed to resolve chat")
		}
		return h.bot.AnswerCallback(cb.ID, "Link your account first")
	}

	crop, err := h.cropService.Harvest(user.Username, cropID)
	switch {
	case errors.Is(err, services.ErrCropAlreadyHarvested):
		return h.bot.AnswerCallback(cb.ID, "Already harvested")
	case errors.Is(err, services.ErrCropNotFound):
		return h.bot.AnswerCallback(cb.ID, "Crop not found")
	case errors.Is(err, services.ErrCropNotReady):
		return h.bot.AnswerCallback(cb.ID, "Not ready yet")
	case err != nil:
		h.logger.Error().Err(err).Uint("crop_id", cropID).Msg("failed to harvest from chat")
		return h.bot.AnswerCallback(cb.ID, "Something went wrong, try again")
	}

	text := fmt.Sprintf("✅ <b>%s</b> marked as harvested.", html.EscapeString(crop.CropType.Name))
	editErr := h.bot.EditText(chatID, cb.Message.MessageID, text)
	return errors.Join(editErr, h.bot.AnswerCallback(cb.ID, "Marked as harvested"))
}

const (
	notLinkedText      = "❌ This chat is not linked to an account. Send /link &lt;code&gt; first."
	genericFailureText = "❌ Something went wrong, please try again later."
	startText          = "🌻 Welcome to the harvest notifier!\n\n" +
		"1. Sign in on the website\n" +
		"2. Get a link code from your profile\n" +
		"3. Send /link &lt;code&gt; here\n\n" +
		"Send /help for all commands."
	helpText = "📋 Commands:\n\n" +
		"/start - Getting started\n" +
		"/help - This list\n" +
		"/link &lt;code&gt; - Link this chat to your account\n" +
		"/status - Crop counts\n" +
		"/settings [on|off] - Show or change notification settings\n" +
		"/unlink - Stop notifications to this chat"
)
