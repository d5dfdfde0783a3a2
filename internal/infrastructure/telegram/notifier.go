package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RucFilter/internal/ports"
)

const (
	defaultAPI = "https://api.telegram.org"
	// maxMessage is the Bot API limit for one sendMessage text.
	maxMessage = 4096
)

var errMisconfigured = errors.New("telegram notifier misconfigured")

// Notifier posts run summaries to one chat through the Bot API.
type Notifier struct {
	api      string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier targets chatID with botToken. An empty api uses the public endpoint.
func NewNotifier(api, botToken, chatID string) *Notifier {
	if api == "" {
		api = defaultAPI
	}
	return &Notifier{
		api:      strings.TrimRight(api, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// PublishSummary sends text, split on line boundaries into as many messages
// as the size limit requires.
func (n *Notifier) PublishSummary(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" {
		return errMisconfigured
	}
	for i, part := range chunks(text, maxMessage) {
		if err := n.send(ctx, part); err != nil {
			return fmt.Errorf("send part %d: %w", i+1, err)
		}
	}
	return nil
}

type apiReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *Notifier) send(ctx context.Context, text string) error {
	form := url.Values{
		"chat_id":                  {n.chatID},
		"text":                     {text},
		"disable_web_page_preview": {"true"},
	}
	endpoint := n.api + "/bot" + n.botToken + "/sendMessage"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var reply apiReply
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(body, &reply) == nil && reply.Description != "" {
		return fmt.Errorf("telegram %s: %s", resp.Status, reply.Description)
	}
	return fmt.Errorf("telegram %s", resp.Status)
}

// chunks splits text into pieces of at most limit bytes, cutting after a
// newline when one is available.
func chunks(text string, limit int) []string {
	var out []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		} else {
			cut++
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" || len(out) == 0 {
		out = append(out, text)
	}
	return out
}
