package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

// Identity is the provider-side profile of a social login.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// Provider is an OAuth2 social login provider.
type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	Decode      func(body []byte) (Identity, error)
}

func GoogleProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: model.ProviderGoogle,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		Decode:      decodeGoogle,
	}
}

func GitHubProvider(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		Name: model.ProviderGitHub,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		UserInfoURL: "https://api.github.com/user",
		Decode:      decodeGitHub,
	}
}

// fetchIdentity calls the provider's profile endpoint with the exchanged token.
func (p *Provider) fetchIdentity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Config.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%s userinfo: %w", p.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("%s userinfo: %w", p.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("%s userinfo: status %d", p.Name, resp.StatusCode)
	}

	id, err := p.Decode(body)
	if err != nil {
		return Identity{}, fmt.Errorf("%s userinfo: %w", p.Name, err)
	}
	if id.Subject == "" {
		return Identity{}, fmt.Errorf("%s userinfo: missing subject", p.Name)
	}
	return id, nil
}

func decodeGoogle(body []byte) (Identity, error) {
	var v struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return Identity{}, err
	}
	return Identity{Subject: v.Sub, Email: v.Email, Name: v.Name, AvatarURL: v.Picture}, nil
}

func decodeGitHub(body []byte) (Identity, error) {
	var v struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return Identity{}, err
	}
	name := v.Name
	if name == "" {
		name = v.Login
	}
	var sub string
	if v.ID != 0 {
		sub = strconv.FormatInt(v.ID, 10)
	}
	return Identity{Subject: sub, Email: v.Email, Name: name, AvatarURL: v.AvatarURL}, nil
}
