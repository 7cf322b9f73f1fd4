package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PropDashboards/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// captionLimit is the Bot API limit for photo captions.
	captionLimit = 1024
)

// Notifier sends batch digests and dashboard images to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API server.
func (n *Notifier) WithAPIBase(base string, client *http.Client) *Notifier {
	n.apiBase = strings.TrimSuffix(base, "/")
	if client != nil {
		n.client = client
	}
	return n
}

// PublishDigest posts a Markdown message to Telegram.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if err := n.check(); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", digest)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return n.do(req)
}

// PublishImage uploads one PNG with a caption through sendPhoto.
func (n *Notifier) PublishImage(ctx context.Context, caption, filename string, image io.Reader) error {
	if err := n.check(); err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", n.chatID); err != nil {
		return fmt.Errorf("write chat id: %w", err)
	}
	if caption != "" {
		if err := mw.WriteField("caption", truncate(caption, captionLimit)); err != nil {
			return fmt.Errorf("write caption: %w", err)
		}
	}
	part, err := mw.CreateFormFile("photo", filename)
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return fmt.Errorf("copy photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendPhoto"), &body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return n.do(req)
}

func (n *Notifier) check() error {
	if n == nil || n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	return nil
}

func (n *Notifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.apiBase, n.botToken, method)
}

func (n *Notifier) do(req *http.Request) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
