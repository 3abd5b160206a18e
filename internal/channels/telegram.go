package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"aristotle/internal/agent"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	telegramAPIBase      = "https://api.telegram.org/bot%s"
	telegramSendMsg      = "/sendMessage"
	telegramChatAction   = "/sendChatAction"
	telegramActionTyping = "typing"
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	telegramMaxMessage   = 4096

	defaultRunTimeout = 15 * time.Minute
)

const telegramHelp = "Send me a topic you want to learn, for example \"Machine Learning\", " +
	"and I will reply with a learning roadmap, curated resources and certification courses."

type TelegramOption func(*Telegram)

// WithAllowedUsers restricts the bot to the given Telegram user IDs. Once
// set, an empty list admits nobody.
func WithAllowedUsers(ids ...int64) TelegramOption {
	return func(t *Telegram) {
		t.restricted = true
		t.allowed = append(t.allowed, ids...)
	}
}

// WithRunTimeout bounds how long one topic may run after the webhook has acked.
func WithRunTimeout(d time.Duration) TelegramOption {
	return func(t *Telegram) {
		if d > 0 {
			t.runTimeout = d
		}
	}
}

// WithSecretToken requires webhook calls to carry the secret set on setWebhook.
func WithSecretToken(secret string) TelegramOption {
	return func(t *Telegram) { t.secret = secret }
}

func WithTelegramAPIURL(url string) TelegramOption {
	return func(t *Telegram) { t.apiURL = url }
}

type Telegram struct {
	reporter   Reporter
	apiURL     string
	secret     string
	restricted bool
	allowed    []int64
	runTimeout time.Duration
	client     *http.Client

	// runs outlive the webhook request; base is cancelled by Close.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTelegram(botToken string, reporter Reporter, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		reporter:   reporter,
		apiURL:     fmt.Sprintf(telegramAPIBase, botToken),
		runTimeout: defaultRunTimeout,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	t.base, t.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ParseAllowedUsers parses a comma separated list of Telegram user IDs.
func ParseAllowedUsers(s string) ([]int64, error) {
	var ids []int64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("allowed_users: invalid user id %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/telegram", t.handleWebhook)
}

type telegramUpdate struct {
	Message *telegramMessage `json:"message"`
}

type telegramMessage struct {
	From *telegramUser `json:"from"`
	Chat telegramChat  `json:"chat"`
	Text string        `json:"text"`
}

type telegramUser struct {
	ID int64 `json:"id"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

type telegramSendRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

func (t *Telegram) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if t.secret != "" && r.Header.Get(telegramSecretHeader) != t.secret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Error("telegram: failed to decode update", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Telegram retries any non-2xx answer and times out slow ones, so the
	// update is acked before the agents run.
	w.WriteHeader(http.StatusOK)

	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if !t.isAllowed(msg.From) {
		slog.Warn("telegram: message from unlisted user", "chat_id", msg.Chat.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), t.runTimeout)
	stop := context.AfterFunc(t.base, cancel)
	ctx = agent.ContextWithRunID(ctx, uuid.NewString())

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		defer stop()
		t.handleMessage(ctx, msg.Chat.ID, strings.TrimSpace(msg.Text))
	}()
}

// Wait blocks until every accepted topic has been answered.
func (t *Telegram) Wait() { t.wg.Wait() }

// Close cancels in-flight topics and waits for them to return.
func (t *Telegram) Close() error {
	t.cancel()
	t.wg.Wait()
	return nil
}

func (t *Telegram) isAllowed(from *telegramUser) bool {
	if !t.restricted {
		return true
	}
	return from != nil && slices.Contains(t.allowed, from.ID)
}

func (t *Telegram) handleMessage(ctx context.Context, chatID int64, text string) {
	if text == "/start" || text == "/help" {
		t.reply(ctx, chatID, telegramHelp, "")
		return
	}

	slog.Info("telegram: received topic", "chat_id", chatID, "run_id", agent.RunIDFromContext(ctx))
	t.sendTyping(ctx, chatID)

	responses, err := t.reporter.RunAll(ctx, text)
	if err != nil {
		slog.Error("telegram: orchestration failed", "chat_id", chatID, "error", err)
		t.reply(context.WithoutCancel(ctx), chatID, userMessage(err), "")
		return
	}

	for _, resp := range responses {
		t.reply(ctx, chatID, fmt.Sprintf("*%s*\n\n%s", resp.Title(), resp.Content), "Markdown")
	}
}

// reply sends text in as many messages as the Telegram size limit requires.
// Markdown that Telegram rejects is resent as plain text.
func (t *Telegram) reply(ctx context.Context, chatID int64, text, parseMode string) {
	for _, part := range splitMessage(text, telegramMaxMessage) {
		err := t.sendMessage(ctx, chatID, part, parseMode)
		if err != nil && parseMode != "" {
			err = t.sendMessage(ctx, chatID, part, "")
		}
		if err != nil {
			slog.Error("telegram: failed to send message", "chat_id", chatID, "error", err)
			return
		}
	}
}

func userMessage(err error) string {
	var (
		auth *agent.AuthError
		ae   *agent.AgentError
	)
	switch {
	case errors.Is(err, agent.ErrEmptyTopic):
		return "Please enter a topic."
	case errors.As(err, &auth):
		return "The server's API credentials were rejected."
	case errors.As(err, &ae):
		return fmt.Sprintf("%s could not finish: %v", ae.Agent, ae.Err)
	default:
		return "Something went wrong, please try again."
	}
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// line boundaries and never splitting a UTF-8 sequence.
func splitMessage(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func (t *Telegram) sendTyping(ctx context.Context, chatID int64) {
	if err := t.post(ctx, telegramChatAction, map[string]any{
		"chat_id": chatID,
		"action":  telegramActionTyping,
	}); err != nil {
		slog.Warn("telegram: failed to send typing action", "chat_id", chatID, "error", err)
	}
}

func (t *Telegram) sendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	return t.post(ctx, telegramSendMsg, telegramSendRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	})
}

func (t *Telegram) post(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned %d", resp.StatusCode)
	}
	return nil
}
