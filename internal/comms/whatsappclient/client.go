// Package whatsappclient is a thin client for a Twilio-style WhatsApp
// message API: form-encoded POST, basic auth, JSON response carrying the
// provider message sid.
package whatsappclient

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
)

const whatsappPrefix = "whatsapp:"

// Config controls how the client talks to the provider.
type Config struct {
	APIURL     string // full message-create endpoint for the account
	AccountSID string
	AuthToken  string
	From       string // sender number, e.g. +14155238886
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	apiURL     string
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, errors.New("whatsappclient: API URL is required")
	}
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("whatsappclient: account SID and auth token are required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("whatsappclient: sender number is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		apiURL:     cfg.APIURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		httpClient: httpClient,
	}, nil
}

type messageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Send delivers one WhatsApp message and returns the provider message sid.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", whatsappPrefix+c.from)
	form.Set("To", whatsappPrefix+strings.TrimPrefix(to, whatsappPrefix))
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("whatsappclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsappclient: send message: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("whatsappclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("whatsappclient: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var msg messageResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("whatsappclient: decode response: %w", err)
	}
	if msg.SID == "" {
		return "", fmt.Errorf("whatsappclient: response missing message sid")
	}

	return msg.SID, nil
}
