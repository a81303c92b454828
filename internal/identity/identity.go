// Package identity decorates notifications with a Roblox profile
// link and avatar for a display name. Lookups are best-effort: any
// failure yields nil, cached successes live for the process lifetime,
// and concurrent lookups for one name collapse into a single call.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cvr-league/config"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const lookupTimeout = 5 * time.Second

type Profile struct {
	UserID     int64
	ProfileURL string
	AvatarURL  string
}

type Resolver struct {
	usersURL  string
	thumbsURL string
	client    *http.Client
	log       *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[string]*Profile
	group singleflight.Group
}

func NewResolver(cfg config.IdentityConfig, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		usersURL:  cfg.UsersURL,
		thumbsURL: cfg.ThumbnailsURL,
		client:    &http.Client{Timeout: lookupTimeout},
		log:       log,
		cache:     make(map[string]*Profile),
	}
}

// Resolve returns the profile for a display name, or nil when the
// name is unknown or the lookup fails for any reason.
func (r *Resolver) Resolve(ctx context.Context, username string) *Profile {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}

	r.mu.RLock()
	cached, ok := r.cache[username]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	v, err, _ := r.group.Do(username, func() (any, error) {
		p := r.lookup(ctx, username)
		if p != nil {
			r.mu.Lock()
			r.cache[username] = p
			r.mu.Unlock()
		}
		return p, nil
	})
	if err != nil {
		return nil
	}
	p, _ := v.(*Profile)
	return p
}

func (r *Resolver) lookup(ctx context.Context, username string) *Profile {
	id, ok := r.userID(ctx, username)
	if !ok {
		return nil
	}
	p := &Profile{
		UserID:     id,
		ProfileURL: fmt.Sprintf("https://www.roblox.com/users/%d/profile", id),
	}
	// Avatar is optional decoration on top of the profile link.
	p.AvatarURL = r.headshot(ctx, id)
	return p
}

func (r *Resolver) userID(ctx context.Context, username string) (int64, bool) {
	payload, err := json.Marshal(map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": true,
	})
	if err != nil {
		return 0, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.usersURL, bytes.NewReader(payload))
	if err != nil {
		return 0, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Debugw("identity lookup failed", "username", username, "error", err)
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var body struct {
		Data []struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.Data) == 0 {
		return 0, false
	}
	return body.Data[0].ID, body.Data[0].ID != 0
}

func (r *Resolver) headshot(ctx context.Context, userID int64) string {
	url := fmt.Sprintf("%s?userIds=%d&size=150x150&format=Png&isCircular=false", r.thumbsURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var body struct {
		Data []struct {
			ImageURL string `json:"imageUrl"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.Data) == 0 {
		return ""
	}
	return body.Data[0].ImageURL
}
