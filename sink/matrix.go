package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"fluxrelay/format"

	log "github.com/sirupsen/logrus"
)

type MatrixConfig struct {
	// URL is the homeserver, either a bare host or a full URL
	URL   string
	Token string
	// Room is a room id; the homeserver host is appended when it has no
	// server part
	Room        string
	MinInterval time.Duration
}

// Matrix sends HTML formatted m.room.message events to one room
type Matrix struct {
	transport
	baseURL string
	token   string
	room    string
	txn     atomic.Uint64
	now     func() time.Time
}

type matrixMessage struct {
	MsgType       string `json:"msgtype"`
	Format        string `json:"format"`
	Body          string `json:"body"`
	FormattedBody string `json:"formatted_body"`
}

func NewMatrix(cfg MatrixConfig, opts ...Option) (*Matrix, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("matrix homeserver url is required")
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse matrix url: %w", err)
	}
	if cfg.Room == "" {
		return nil, fmt.Errorf("matrix room is required")
	}

	room := cfg.Room
	if !strings.Contains(room, ":") {
		room = room + ":" + u.Host
	}

	return &Matrix{
		transport: newTransport("matrix", cfg.MinInterval, opts),
		baseURL:   base,
		token:     cfg.Token,
		room:      room,
		now:       time.Now,
	}, nil
}

func (m *Matrix) Name() string {
	return "matrix:" + m.room
}

func (m *Matrix) Markup() format.Markup {
	return format.HTML
}

// Room returns the fully qualified room id
func (m *Matrix) Room() string {
	return m.room
}

// Deliver sends message as formatted body and its plain text as body.
// Returns the raw homeserver response.
func (m *Matrix) Deliver(ctx context.Context, message string) (string, error) {
	payload, err := json.Marshal(matrixMessage{
		MsgType:       "m.text",
		Format:        "org.matrix.custom.html",
		Body:          format.PlainText(message),
		FormattedBody: message,
	})
	if err != nil {
		return "", fmt.Errorf("marshal matrix message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		m.baseURL, url.PathEscape(m.room), url.PathEscape(m.nextTxnID()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build matrix request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	req.Header.Set("Content-Type", "application/json")

	raw, err := m.send(ctx, req)
	if err != nil {
		return "", err
	}

	var resp struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.WithFields(log.Fields{
			"room": m.room,
			"body": string(raw),
		}).Warn("Could not decode Matrix response")
	}

	log.WithFields(log.Fields{
		"room":     m.room,
		"event_id": resp.EventID,
	}).Debug("Message sent to Matrix")

	return string(raw), nil
}

// nextTxnID is the current time in fractional seconds plus a per client
// counter, so ids never repeat within a process
func (m *Matrix) nextTxnID() string {
	secs := float64(m.now().UnixMicro()) / 1e6
	return fmt.Sprintf("%.6f-%d", secs, m.txn.Add(1))
}
