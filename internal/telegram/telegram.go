// Package telegram is the publishing collaborator: one text post per
// run, optionally with a single image or video attachment uploaded as
// bytes. Media failures degrade to a text-only post; rate limits are
// honored via the API's retry_after hint.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/media"
	"github.com/deusflow/newsbot/internal/metrics"
)

var allowedMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

var extMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".m4v":  "video/mp4",
}

type Publisher struct {
	token         string
	chatID        string
	client        *http.Client
	mediaClient   *http.Client
	maxMediaBytes int64
	retries       int
	baseURL       string
}

func NewPublisher(token, chatID string, maxMediaBytes int64, mediaTimeout time.Duration, retries int) *Publisher {
	if retries <= 0 {
		retries = 3
	}
	return &Publisher{
		token:         token,
		chatID:        chatID,
		client:        &http.Client{Timeout: 30 * time.Second},
		mediaClient:   &http.Client{Timeout: mediaTimeout},
		maxMediaBytes: maxMediaBytes,
		retries:       retries,
		baseURL:       "https://api.telegram.org",
	}
}

// Publish posts text with an optional attachment and returns the
// platform message identifier. An attachment that cannot be fetched,
// classified into the allow-list, or uploaded falls back to a
// text-only post instead of failing the publish.
func (p *Publisher) Publish(ctx context.Context, text string, att *media.Attachment) (string, error) {
	if att != nil {
		id, err := p.publishWithMedia(ctx, text, att)
		if err == nil {
			return id, nil
		}
		logger.Warn("media publish failed, falling back to text-only", "url", att.URL, "error", err)
	}

	return p.sendWithRetry(ctx, func() (*http.Request, error) {
		return p.buildMessageRequest(ctx, text)
	})
}

func (p *Publisher) publishWithMedia(ctx context.Context, text string, att *media.Attachment) (string, error) {
	data, mimeType, err := p.fetchMedia(ctx, att.URL)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	if !allowedMIMETypes[mimeType] {
		return "", fmt.Errorf("unsupported media type %q", mimeType)
	}

	return p.sendWithRetry(ctx, func() (*http.Request, error) {
		return p.buildMediaRequest(ctx, text, att, data, mimeType)
	})
}

// fetchMedia downloads the attachment with a bounded size and timeout.
// The MIME type derived from the URL extension wins over the
// server-declared Content-Type.
func (p *Publisher) fetchMedia(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := p.mediaClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxMediaBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > p.maxMediaBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", p.maxMediaBytes)
	}

	mimeType := MIMEFromURL(rawURL)
	if mimeType == "" {
		mimeType, _, _ = strings.Cut(resp.Header.Get("Content-Type"), ";")
		mimeType = strings.TrimSpace(mimeType)
	}
	return data, mimeType, nil
}

// MIMEFromURL maps a recognized file extension (query string stripped)
// to its MIME type, or "".
func MIMEFromURL(rawURL string) string {
	clean := rawURL
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	return extMIMETypes[strings.ToLower(path.Ext(clean))]
}

func (p *Publisher) buildMessageRequest(ctx context.Context, text string) (*http.Request, error) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token)
	payload := map[string]interface{}{
		"chat_id":                  p.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (p *Publisher) buildMediaRequest(ctx context.Context, text string, att *media.Attachment, data []byte, mimeType string) (*http.Request, error) {
	method, field := "sendPhoto", "photo"
	if att.Kind == media.KindVideo {
		method, field = "sendVideo", "video"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", p.chatID); err != nil {
		return nil, err
	}
	if err := w.WriteField("caption", text); err != nil {
		return nil, err
	}
	part, err := w.CreateFormFile(field, fileNameFor(att.URL, mimeType))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/%s", p.baseURL, p.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func fileNameFor(rawURL, mimeType string) string {
	clean := rawURL
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if name := path.Base(clean); name != "" && name != "." && name != "/" {
		return name
	}
	if strings.HasPrefix(mimeType, "video/") {
		return "attachment.mp4"
	}
	return "attachment.jpg"
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
	Result *struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// sendWithRetry performs a bounded number of attempts, sleeping the
// server's retry_after on rate limits and an exponential backoff
// otherwise. The request is rebuilt per attempt because multipart
// bodies are single-use.
func (p *Publisher) sendWithRetry(ctx context.Context, build func() (*http.Request, error)) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= p.retries; attempt++ {
		req, err := build()
		if err != nil {
			return "", err
		}

		id, retryAfter, err := p.sendOnce(req)
		if err == nil {
			metrics.Global.IncrementPublished()
			logger.Info("published", "attempt", attempt, "message_id", id)
			return id, nil
		}
		lastErr = err

		if attempt == p.retries {
			break
		}

		wait := time.Duration(1<<attempt) * time.Second
		if retryAfter > 0 {
			wait = time.Duration(retryAfter) * time.Second
		}
		logger.Warn("publish attempt failed", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}

	metrics.Global.IncrementPublishFailed()
	return "", fmt.Errorf("publish failed after %d attempts: %w", p.retries, lastErr)
}

func (p *Publisher) sendOnce(req *http.Request) (id string, retryAfter int, err error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var api apiResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&api); decodeErr != nil {
		if resp.StatusCode != http.StatusOK {
			return "", 0, fmt.Errorf("API error: status %d", resp.StatusCode)
		}
		return "", 0, fmt.Errorf("decode response: %w", decodeErr)
	}

	if !api.OK {
		if api.Parameters != nil {
			retryAfter = api.Parameters.RetryAfter
		}
		return "", retryAfter, fmt.Errorf("API error %d: %s", api.ErrorCode, api.Description)
	}
	if api.Result == nil {
		return "", 0, fmt.Errorf("API response missing result")
	}
	return strconv.FormatInt(api.Result.MessageID, 10), 0, nil
}
