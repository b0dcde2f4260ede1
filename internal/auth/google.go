package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"

	"github.com/warraq-app/warraq/internal/common"
)

// driveFileScope limits access to files the app itself creates.
const driveFileScope = "https://www.googleapis.com/auth/drive.file"

// googleEndpoint is declared inline so the provider only depends on the core
// oauth2 package.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// GoogleProvider refreshes Google OAuth tokens from a JSON cache file on
// disk. Interactive authorization happens through Login; Token never opens a
// browser.
type GoogleProvider struct {
	cfg          *oauth2.Config
	cachePath    string
	callbackAddr string
	logger       *slog.Logger

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewGoogleProvider builds a provider. cachePath may be empty to use the
// default location under the user cache directory.
func NewGoogleProvider(clientID, clientSecret, cachePath, callbackAddr string, logger *slog.Logger) *GoogleProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cachePath == "" {
		cachePath = DefaultCachePath()
	}
	if callbackAddr == "" {
		callbackAddr = "127.0.0.1:3027"
	}
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleEndpoint,
			RedirectURL:  "http://" + callbackAddr + "/",
			Scopes:       []string{driveFileScope},
		},
		cachePath:    cachePath,
		callbackAddr: callbackAddr,
		logger:       logger,
	}
}

// Token returns a valid access token, refreshing through the cached refresh
// token when needed. A missing cache means the user never logged in.
func (p *GoogleProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil {
		tok, err := loadToken(p.cachePath)
		if err != nil {
			if os.IsNotExist(err) {
				return "", common.ErrNotAuthenticated
			}
			return "", fmt.Errorf("load token cache: %w", err)
		}
		p.source = p.cfg.TokenSource(context.Background(), tok)
	}

	tok, err := p.source.Token()
	if err != nil {
		p.logger.Warn("auth.refresh_failed", "error", err)
		return "", fmt.Errorf("%w: %v", common.ErrNotAuthenticated, err)
	}
	if err := saveToken(p.cachePath, tok); err != nil {
		p.logger.Warn("auth.cache_write_failed", "error", err)
	}
	return tok.AccessToken, nil
}

// Logout drops the cached credentials.
func (p *GoogleProvider) Logout() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = nil
	if err := os.Remove(p.cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	return nil
}
