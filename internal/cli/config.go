package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

const (
	AppName       = "taskmaster"
	TokenFile     = "token.json"
	DefaultServer = "http://localhost:8080"
)

var ErrNotLoggedIn = errors.New("not logged in (run: taskctl login)")

type Config struct {
	Dir    string
	Server string
	Debug  bool
}

// NewConfig fills empty values from TASKMASTER_URL and the XDG config dir.
func NewConfig(dir, server string) *Config {
	if dir == "" {
		dir = DefaultConfigDir()
	}
	if server == "" {
		server = os.Getenv("TASKMASTER_URL")
	}
	if server == "" {
		server = DefaultServer
	}
	return &Config{Dir: dir, Server: server}
}

func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

func (c *Config) LoadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}
	return &tok, nil
}

// SaveToken writes the token with mode 0600 inside a 0700 directory.
func (c *Config) SaveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(c.Dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.TokenPath(), data, 0600)
}

func (c *Config) RemoveToken() error {
	err := os.Remove(c.TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
