// Package auth is the identity and session gateway: email/password and OAuth2
// sign-in, JWT sessions with refresh-token rotation, and request principals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/BuzzLyutic/taskmaster/internal/model"
	"github.com/BuzzLyutic/taskmaster/internal/repo"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrUserExists         = errors.New("user already exists")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrInvalidState       = errors.New("invalid or expired oauth state")
)

const (
	stateTTL      = 10 * time.Minute
	statePrefix   = "oauth:"
	revokedPrefix = "revoked:"
)

// Session is returned by every successful sign-in.
type Session struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	TokenType    string     `json:"token_type"`
	User         model.User `json:"user"`
}

type Gateway struct {
	users     repo.UserRepository
	hasher    *PasswordHasher
	tokens    *TokenManager
	keys      KeyStore
	providers map[string]*Provider
	logger    *zap.Logger
}

func NewGateway(users repo.UserRepository, hasher *PasswordHasher, tokens *TokenManager, keys KeyStore, logger *zap.Logger, providers ...*Provider) *Gateway {
	g := &Gateway{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		keys:      keys,
		providers: make(map[string]*Provider),
		logger:    logger,
	}
	for _, p := range providers {
		g.providers[p.Name] = p
	}
	return g
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (g *Gateway) SignUp(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return model.User{}, ErrInvalidEmail
	}
	if len(password) < 8 {
		return model.User{}, ErrWeakPassword
	}
	if len(password) > 72 {
		return model.User{}, ErrPasswordTooLong
	}

	hash, err := g.hasher.Hash(password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := g.users.CreateUser(ctx, model.User{Email: email, Provider: model.ProviderEmail}, hash)
	if errors.Is(err, repo.ErrorConflict) {
		return model.User{}, ErrUserExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	g.logger.Info("user signed up", zap.String("user_id", u.ID))
	return u, nil
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (Session, error) {
	u, hash, err := g.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repo.ErrorNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if hash == "" || !g.hasher.Verify(password, hash) {
		return Session{}, ErrInvalidCredentials
	}
	return g.issue(u)
}

// Refresh rotates a refresh token. Each refresh token is accepted once.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := g.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return Session{}, err
	}

	fresh, err := g.revoke(ctx, claims)
	if err != nil {
		return Session{}, err
	}
	if !fresh {
		g.logger.Warn("refresh token reuse", zap.String("user_id", claims.UserID))
		return Session{}, ErrInvalidToken
	}

	u, err := g.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, repo.ErrorNotFound) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	return g.issue(u)
}

// SignOut revokes the refresh token. Access tokens expire on their own.
func (g *Gateway) SignOut(ctx context.Context, refreshToken string) error {
	claims, err := g.tokens.ValidateRefresh(refreshToken)
	if errors.Is(err, ErrExpiredToken) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = g.revoke(ctx, claims)
	return err
}

func (g *Gateway) revoke(ctx context.Context, claims *Claims) (bool, error) {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		ttl = time.Second
	}
	return g.keys.Claim(ctx, revokedPrefix+claims.ID, ttl)
}

func (g *Gateway) Authenticate(_ context.Context, accessToken string) (Principal, error) {
	claims, err := g.tokens.ValidateAccess(accessToken)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: claims.UserID, Email: claims.Email}, nil
}

func (g *Gateway) CurrentUser(ctx context.Context, userID string) (model.User, error) {
	return g.users.FindByID(ctx, userID)
}

// Providers lists the configured social login providers.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BeginOAuth returns the provider consent URL. State and PKCE verifier are
// kept in the key store until the callback.
func (g *Gateway) BeginOAuth(ctx context.Context, provider string) (string, error) {
	p, ok := g.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	if err := g.keys.Put(ctx, statePrefix+state, p.Name+"|"+verifier, stateTTL); err != nil {
		return "", err
	}
	return p.Config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

func (g *Gateway) CompleteOAuth(ctx context.Context, provider, state, code string) (Session, error) {
	p, ok := g.providers[provider]
	if !ok {
		return Session{}, ErrUnknownProvider
	}

	v, ok, err := g.keys.Take(ctx, statePrefix+state)
	if err != nil {
		return Session{}, err
	}
	name, verifier, found := strings.Cut(v, "|")
	if !ok || !found || name != p.Name {
		return Session{}, ErrInvalidState
	}

	tok, err := p.Config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Session{}, fmt.Errorf("%s exchange: %w", p.Name, err)
	}

	ident, err := p.fetchIdentity(ctx, tok)
	if err != nil {
		return Session{}, err
	}

	u, err := g.users.UpsertIdentity(ctx, p.Name, ident.Subject, model.User{
		Email:     normalizeEmail(ident.Email),
		Name:      ident.Name,
		AvatarURL: ident.AvatarURL,
		Provider:  p.Name,
	})
	if err != nil {
		return Session{}, fmt.Errorf("upsert identity: %w", err)
	}

	g.logger.Info("user signed in", zap.String("user_id", u.ID), zap.String("provider", p.Name))
	return g.issue(u)
}

func (g *Gateway) issue(u model.User) (Session, error) {
	pair, err := g.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	return Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    "Bearer",
		User:         u,
	}, nil
}
