// Package telegram sends chat messages through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrRateLimited is returned when Telegram still answers 429 after one wait.
var ErrRateLimited = errors.New("telegram rate limited")

// Client posts messages with a simple per-client pace of ~1 msg/s.
type Client struct {
	client *resty.Client
	token  string

	minInterval   time.Duration
	maxRetryAfter time.Duration

	mu          sync.Mutex
	nextAllowed time.Time
}

// New creates a client for the bot token.
func New(baseURL, token string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	return &Client{
		client:        client,
		token:         token,
		minInterval:   1100 * time.Millisecond,
		maxRetryAfter: 30 * time.Second,
	}
}

type sendRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send posts an HTML message. A 429 is retried once after Retry-After.
func (c *Client) Send(ctx context.Context, chatID, text string, linkPreview bool) error {
	payload := sendRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: !linkPreview,
	}

	for attempt := 0; attempt < 2; attempt++ {
		if err := c.wait(ctx); err != nil {
			return err
		}

		retryAfter, err := c.post(ctx, payload)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt > 0 {
			return err
		}

		retryAfter = min(retryAfter, c.maxRetryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
	return ErrRateLimited
}

func (c *Client) post(ctx context.Context, payload sendRequest) (time.Duration, error) {
	var res apiResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&res).
		SetError(&res).
		Post("/bot" + c.token + "/sendMessage")
	if err != nil {
		// The URL carries the token; keep it out of logs.
		return 0, fmt.Errorf("sendMessage: %w", redact(err, c.token))
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		wait := parseRetryAfter(resp.Header().Get("Retry-After"))
		if res.Parameters.RetryAfter > 0 {
			wait = time.Duration(res.Parameters.RetryAfter) * time.Second
		}
		if wait <= 0 {
			wait = time.Second
		}
		return wait, fmt.Errorf("%w: %s", ErrRateLimited, res.Description)
	}
	if resp.IsError() || !res.OK {
		return 0, fmt.Errorf("sendMessage: %s: %s", resp.Status(), res.Description)
	}
	return 0, nil
}

// wait blocks until the pacing window allows another message.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	delay := c.nextAllowed.Sub(now)
	if delay < 0 {
		delay = 0
	}
	c.nextAllowed = now.Add(delay + c.minInterval)
	c.mu.Unlock()

	if delay == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if sec, err := strconv.Atoi(v); err == nil && sec >= 0 {
		return time.Duration(sec) * time.Second
	}
	return 5 * time.Second
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
