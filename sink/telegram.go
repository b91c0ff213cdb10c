package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"fluxrelay/format"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultTelegramBaseURL     = "https://api.telegram.org"
	DefaultTelegramThreadID    = "0"
	DefaultTelegramMinInterval = time.Second
)

type TelegramConfig struct {
	BaseURL     string
	Token       string
	ChatID      string
	ThreadID    string
	MinInterval time.Duration
}

// Telegram sends MarkdownV2 messages to one chat, optionally one topic
type Telegram struct {
	transport
	baseURL  string
	token    string
	chatID   string
	threadID string
}

type telegramMessage struct {
	ChatID          string `json:"chat_id"`
	MessageThreadID string `json:"message_thread_id"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func NewTelegram(cfg TelegramConfig, opts ...Option) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultTelegramBaseURL
	}
	thread := cfg.ThreadID
	if thread == "" {
		thread = DefaultTelegramThreadID
	}
	return &Telegram{
		transport: newTransport("telegram", cfg.MinInterval, opts),
		baseURL:   base,
		token:     cfg.Token,
		chatID:    cfg.ChatID,
		threadID:  thread,
	}, nil
}

func (t *Telegram) Name() string {
	return "telegram:" + t.chatID
}

func (t *Telegram) Markup() format.Markup {
	return format.MarkdownV2
}

// Deliver sends message, split into several messages when it is longer
// than Telegram allows. It fails as soon as one part fails and returns the
// raw response to the last part sent.
func (t *Telegram) Deliver(ctx context.Context, message string) (string, error) {
	parts := Split(message, format.MaxMessageLength)
	var body string
	for i, part := range parts {
		var err error
		body, err = t.sendMessage(ctx, part)
		if err != nil {
			if len(parts) > 1 {
				return "", fmt.Errorf("part %d of %d: %w", i+1, len(parts), err)
			}
			return "", err
		}
	}
	return body, nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(telegramMessage{
		ChatID:          t.chatID,
		MessageThreadID: t.threadID,
		Text:            text,
		ParseMode:       "MarkdownV2",
	})
	if err != nil {
		return "", fmt.Errorf("marshal telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/bot"+t.token+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := t.send(ctx, req)
	if err != nil {
		return "", err
	}

	var resp telegramResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode telegram response: %w", err)
	}
	if !resp.OK {
		return "", &DeliveryError{Sink: t.name, StatusCode: http.StatusOK, Body: string(raw)}
	}

	log.WithFields(log.Fields{
		"chat_id":    t.chatID,
		"thread_id":  t.threadID,
		"message_id": strconv.FormatInt(resp.Result.MessageID, 10),
	}).Debug("Message sent to Telegram")

	return string(raw), nil
}

// Split breaks text into parts of at most limit UTF-16 code units. Cuts
// happen on paragraph boundaries, then line boundaries, and only as a last
// resort inside a line. A cut never separates an escape backslash from the
// character it escapes.
func Split(text string, limit int) []string {
	if format.UTF16Len(text) <= limit {
		return []string{text}
	}

	var parts []string
	rest := text
	for format.UTF16Len(rest) > limit {
		window := format.UTF16Prefix(rest, limit)
		if window == "" {
			// limit is smaller than the first rune
			_, size := utf8.DecodeRuneInString(rest)
			window = rest[:size]
		}

		cut := strings.LastIndex(window, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(window, "\n")
		}
		if cut <= 0 {
			cut = len(window)
			for cut > 0 && window[cut-1] == '\\' {
				cut--
			}
			if cut == 0 {
				cut = len(window)
			}
		}

		if part := strings.TrimRight(rest[:cut], "\n"); part != "" {
			parts = append(parts, part)
		}
		rest = strings.TrimLeft(rest[cut:], "\n")
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}
