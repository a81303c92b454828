// Package platform talks to the community platform's member-tag API:
// reading a member's role tags and applying tag changes for the
// role-sync worker.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cvr-league/config"

	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.SugaredLogger
}

func NewClient(cfg config.PlatformConfig, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// MemberTags returns the member's current role tags.
func (c *Client) MemberTags(ctx context.Context, userID int64) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/members/%d/tags", c.baseURL, userID))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("member tags: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("member tags: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("member tags: %w", err)
	}
	return body.Tags, nil
}

func (c *Client) AddTag(ctx context.Context, userID int64, tag string) error {
	return c.tagOp(ctx, http.MethodPut, userID, tag)
}

func (c *Client) RemoveTag(ctx context.Context, userID int64, tag string) error {
	return c.tagOp(ctx, http.MethodDelete, userID, tag)
}

func (c *Client) tagOp(ctx context.Context, method string, userID int64, tag string) error {
	u := fmt.Sprintf("%s/members/%d/tags/%s", c.baseURL, userID, url.PathEscape(tag))
	req, err := c.newRequest(ctx, method, u)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tag %s %q: %w", method, tag, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("tag %s %q: unexpected status %d", method, tag, resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}
