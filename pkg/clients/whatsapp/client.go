// Package whatsapp sends alert texts through the WhatsApp Cloud API.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/freshstock/internal/config"
)

const (
	requestTimeout = 15 * time.Second
	// maxBodyRunes is the Cloud API limit for a text message body.
	maxBodyRunes = 4096
)

// ErrEmptyAlert is returned for an alert without recipient or text.
var ErrEmptyAlert = errors.New("alert needs a recipient and a text")

// Sender delivers one alert text and returns the message id assigned by Meta.
type Sender interface {
	SendAlert(ctx context.Context, to, text string) (string, error)
}

// AlertClient is the resty-backed Sender.
type AlertClient struct {
	http          *resty.Client
	phoneNumberID string
}

var _ Sender = (*AlertClient)(nil)

// NewClient points an AlertClient at the messages endpoint of the configured
// phone number. Throttling, server errors and transport failures are retried
// twice; other 4xx answers are final.
func NewClient(cfg config.WhatsAppConfig) *AlertClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.APIVersion != "" {
		base += "/" + strings.Trim(cfg.APIVersion, "/")
	}

	client := resty.New().
		SetBaseURL(base).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(requestTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || retryable(r.StatusCode())
		})

	return &AlertClient{http: client, phoneNumberID: cfg.PhoneNumberID}
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type outgoingText struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type sendResult struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is the error payload returned by the Cloud API.
type APIError struct {
	Status int `json:"-"`
	Detail struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api: status %d code %d: %s", e.Status, e.Detail.Code, e.Detail.Message)
}

// Temporary reports whether resending the same alert later may succeed.
func (e *APIError) Temporary() bool { return retryable(e.Status) }

// SendAlert texts one alert to a single recipient. Bodies longer than the API
// limit are cut with an ellipsis.
func (c *AlertClient) SendAlert(ctx context.Context, to, text string) (string, error) {
	to, text = strings.TrimSpace(to), strings.TrimSpace(text)
	if to == "" || text == "" {
		return "", ErrEmptyAlert
	}

	result := new(sendResult)
	apiErr := new(APIError)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(outgoingText{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "text",
			Text:             textBody{Body: clip(text)},
		}).
		SetResult(result).
		SetError(apiErr).
		Post(c.phoneNumberID + "/messages")
	if err != nil {
		return "", fmt.Errorf("send alert to %s: %w", to, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return "", apiErr
	}

	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func clip(text string) string {
	if utf8.RuneCountInString(text) <= maxBodyRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxBodyRunes-1]) + "…"
}
