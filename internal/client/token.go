package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// refresher exchanges the current refresh token for a new session. Refresh
// tokens are single use, so the latest one is tracked.
type refresher struct {
	ctx     context.Context
	c       *Client
	mu      sync.Mutex
	refresh string
	onToken func(*oauth2.Token)
}

func (r *refresher) Token() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refresh == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrUnauthorized)
	}
	s, err := r.c.Refresh(r.ctx, r.refresh)
	if err != nil {
		return nil, err
	}
	r.refresh = s.RefreshToken

	tok := s.Token()
	if r.onToken != nil {
		r.onToken(tok)
	}
	return tok, nil
}

// TokenSource returns tok while it is valid and then refreshes it through the
// API. onToken, if set, sees every rotated token so it can be persisted.
func (c *Client) TokenSource(ctx context.Context, tok *oauth2.Token, onToken func(*oauth2.Token)) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(tok, &refresher{
		ctx:     ctx,
		c:       c,
		refresh: tok.RefreshToken,
		onToken: onToken,
	})
}

// UserID reads the owner from an access token without verifying it; the
// server verifies every request.
func UserID(accessToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}
	id, _ := claims["user_id"].(string)
	if id == "" {
		return "", errors.New("access token has no user_id")
	}
	return id, nil
}
