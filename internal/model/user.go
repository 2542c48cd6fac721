package model

import "time"

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}
