package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/clearskybot/internal/logger"
)

const (
	// DefaultTelegramServerURL is the public Bot API endpoint.
	DefaultTelegramServerURL = "https://api.telegram.org"

	maxUpdatesPerPoll  = 100
	maxUpdatesBodySize = 16 << 20
	defaultHTTPTimeout = 30 * time.Second
)

// ErrTelegramAPI is returned when the Bot API answers with ok=false.
var ErrTelegramAPI = errors.New("telegram api error")

// TelegramConfig configures the Telegram client.
type TelegramConfig struct {
	Token     string
	ChannelID int64  // Chat that receives the daily posts.
	ServerURL string // Bot API endpoint; empty means DefaultTelegramServerURL.
	Timeout   time.Duration
}

// Telegram is a Client backed by the Telegram Bot API.
//
// Updates are pulled by MentionsSince with getUpdates offset since+1, so
// Telegram only forgets updates the caller has already persisted past. The
// library's own poller is not used because it acknowledges updates as soon as
// they are received. The update id doubles as the mention id.
type Telegram struct {
	bot        *tgbot.Bot
	logger     *slog.Logger
	channelID  int64
	self       models.User
	updatesURL string
	client     *http.Client

	mu    sync.Mutex
	batch []Mention
}

// NewTelegram creates the bot and looks up its own account.
func NewTelegram(ctx context.Context, cfg TelegramConfig, log *slog.Logger) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	serverURL := strings.TrimRight(cfg.ServerURL, "/")
	if serverURL == "" {
		serverURL = DefaultTelegramServerURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	t := &Telegram{
		logger:     log.With("component", "telegram"),
		channelID:  cfg.ChannelID,
		updatesURL: serverURL + "/bot" + cfg.Token + "/getUpdates",
		client:     &http.Client{Timeout: timeout},
	}

	b, err := tgbot.New(cfg.Token,
		tgbot.WithServerURL(serverURL),
		tgbot.WithHTTPClient(timeout, t.client),
		tgbot.WithSkipGetMe(),
		tgbot.WithNotAsyncHandlers(),
		tgbot.WithMiddlewares(logger.Middleware(t.logger)),
		tgbot.WithDefaultHandler(t.onUpdate),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	t.bot = b

	me, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	t.self = *me
	t.logger.Info("Telegram bot ready", "bot_id", me.ID, "bot_username", me.Username)
	return t, nil
}

// Start blocks until ctx is cancelled. Updates are pulled by MentionsSince.
func (t *Telegram) Start(ctx context.Context) error {
	t.logger.Info("Telegram client started, updates are pulled by the reactor")
	<-ctx.Done()
	return nil
}

// PostWithMedia sends media with text as caption to the configured channel.
func (t *Telegram) PostWithMedia(ctx context.Context, text string, media *Media) (PostID, error) {
	if t.channelID == 0 {
		return "", errors.New("telegram channel id is not configured")
	}
	return t.send(ctx, t.channelID, nil, text, media)
}

// Reply answers the mention in its chat, threaded under the mentioning message.
func (t *Telegram) Reply(ctx context.Context, to Mention, text string, media *Media) (PostID, error) {
	return t.send(ctx, to.ChatID, &models.ReplyParameters{MessageID: to.MessageID}, text, media)
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset"`
	Limit          int      `json:"limit"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type getUpdatesResponse struct {
	OK          bool             `json:"ok"`
	Result      []*models.Update `json:"result"`
	ErrorCode   int              `json:"error_code"`
	Description string           `json:"description"`
}

// MentionsSince fetches updates after since. Updates that do not address the
// bot come back as Ignored mentions so the cursor can move past them.
func (t *Telegram) MentionsSince(ctx context.Context, since int64) ([]Mention, error) {
	updates, err := t.getUpdates(ctx, since+1)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.batch = t.batch[:0]
	for _, upd := range updates {
		if upd == nil || upd.ID <= since {
			continue
		}
		// Handlers run synchronously, so onUpdate has appended before this returns.
		t.bot.ProcessUpdate(ctx, upd)
	}
	out := make([]Mention, len(t.batch))
	copy(out, t.batch)
	return out, nil
}

func (t *Telegram) getUpdates(ctx context.Context, offset int64) ([]*models.Update, error) {
	body, err := json.Marshal(getUpdatesRequest{
		Offset:         offset,
		Limit:          maxUpdatesPerPoll,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode getUpdates request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.updatesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create getUpdates request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of logs.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("getUpdates request failed: %w", err)
	}
	defer resp.Body.Close()

	var res getUpdatesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUpdatesBodySize)).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode getUpdates response (status %d): %w", resp.StatusCode, err)
	}
	if !res.OK {
		return nil, fmt.Errorf("%w: getUpdates: %d %s", ErrTelegramAPI, res.ErrorCode, res.Description)
	}
	return res.Result, nil
}

func (t *Telegram) send(ctx context.Context, chatID int64, reply *models.ReplyParameters, text string, media *Media) (PostID, error) {
	var (
		msg *models.Message
		err error
	)
	if media != nil {
		msg, err = t.bot.SendPhoto(ctx, &tgbot.SendPhotoParams{
			ChatID:          chatID,
			Photo:           &models.InputFileUpload{Filename: media.Filename, Data: bytes.NewReader(media.Data)},
			Caption:         text,
			ReplyParameters: reply,
		})
	} else {
		msg, err = t.bot.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:          chatID,
			Text:            text,
			ReplyParameters: reply,
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
	}
	return PostID(strconv.Itoa(msg.ID)), nil
}

func (t *Telegram) onUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	m, ok := MentionFromUpdate(update, t.self)
	if !ok {
		m = Mention{ID: update.ID, Ignored: true}
	} else {
		t.logger.DebugContext(ctx, "Received mention", "mention_id", m.ID, "chat_id", m.ChatID)
	}
	t.batch = append(t.batch, m)
}

// MentionFromUpdate extracts a Mention from update if the message addresses
// self: sent in a private chat, naming @username, or replying to the bot.
func MentionFromUpdate(update *models.Update, self models.User) (Mention, bool) {
	if update == nil || update.Message == nil {
		return Mention{}, false
	}
	msg := update.Message
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return Mention{}, false
	}
	if msg.From != nil && msg.From.ID == self.ID {
		return Mention{}, false
	}

	handle := ""
	if self.Username != "" {
		handle = "@" + self.Username
	}

	addressed := msg.Chat.Type == models.ChatTypePrivate
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.ID == self.ID {
		addressed = true
	}

	var kept []string
	for _, tok := range strings.Fields(text) {
		if handle != "" && strings.EqualFold(strings.TrimRight(tok, ",.:!?"), handle) {
			addressed = true
			continue
		}
		kept = append(kept, tok)
	}
	if !addressed {
		return Mention{}, false
	}

	return Mention{
		ID:        update.ID,
		Text:      strings.Join(kept, " "),
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	}, true
}
