package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"loreforge/internal/fileutil"
	"loreforge/internal/services"
)

// Scopes requested for uploads.
var Scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube.readonly",
}

type storedToken struct {
	Token        string   `json:"token,omitempty"`
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

func (s storedToken) oauthToken() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.Token,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = s.AccessToken
	}
	if s.Expiry != "" {
		if at, err := time.Parse(time.RFC3339Nano, s.Expiry); err == nil {
			tok.Expiry = at
		} else if at, err := time.Parse("2006-01-02T15:04:05.999999", s.Expiry); err == nil {
			tok.Expiry = at.UTC()
		}
	}
	return tok
}

// OAuthConfig builds the OAuth2 client configuration from the client
// secrets file. When the file is absent the client id and secret embedded
// in the token file are used instead.
func OAuthConfig(secretsPath, tokenPath string) (*oauth2.Config, error) {
	if strings.TrimSpace(secretsPath) != "" {
		data, err := os.ReadFile(secretsPath)
		switch {
		case err == nil:
			cfg, err := google.ConfigFromJSON(data, Scopes...)
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "youtube", "client secrets", "parse "+secretsPath, err)
			}
			return cfg, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, services.Wrap(services.ErrConfiguration, "youtube", "client secrets", "read "+secretsPath, err)
		}
	}
	stored, err := readStoredToken(tokenPath)
	if err != nil {
		return nil, err
	}
	if stored.ClientID == "" || stored.ClientSecret == "" {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "client secrets",
			"client secrets not found at "+secretsPath+" and token file carries no client id", nil)
	}
	cfg := &oauth2.Config{
		ClientID:     stored.ClientID,
		ClientSecret: stored.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}
	if stored.TokenURI != "" {
		cfg.Endpoint.TokenURL = stored.TokenURI
	}
	return cfg, nil
}

// TokenSource returns a refreshing token source backed by tokenPath.
// Refreshed tokens are persisted so the next run starts from them.
func TokenSource(ctx context.Context, secretsPath, tokenPath string) (oauth2.TokenSource, error) {
	stored, err := readStoredToken(tokenPath)
	if err != nil {
		return nil, err
	}
	cfg, err := OAuthConfig(secretsPath, tokenPath)
	if err != nil {
		return nil, err
	}
	tok := stored.oauthToken()
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "token",
			"token file "+tokenPath+" has neither access nor refresh token", nil)
	}
	persist := &persistingSource{
		base:   cfg.TokenSource(ctx, tok),
		path:   tokenPath,
		cfg:    cfg,
		last:   tok.AccessToken,
		stored: stored,
	}
	return oauth2.ReuseTokenSource(tok, persist), nil
}

// AuthURL returns the consent URL for a first authorization.
func AuthURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL("loreforge", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token and stores it at
// tokenPath.
func Exchange(ctx context.Context, cfg *oauth2.Config, code, tokenPath string) error {
	tok, err := cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "youtube", "exchange", "authorization code exchange failed", err)
	}
	return writeStoredToken(tokenPath, cfg, storedToken{Scopes: cfg.Scopes}, tok)
}

type persistingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	path   string
	cfg    *oauth2.Config
	last   string
	stored storedToken
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "youtube", "token", "refresh failed", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := writeStoredToken(p.path, p.cfg, p.stored, tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

func readStoredToken(path string) (storedToken, error) {
	var stored storedToken
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stored, services.Wrap(services.ErrConfiguration, "youtube", "token",
				"token file "+path+" not found; run `loreforge upload auth` first", nil)
		}
		return stored, services.Wrap(services.ErrConfiguration, "youtube", "token", "read "+path, err)
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return stored, services.Wrap(services.ErrConfiguration, "youtube", "token", "parse "+path, err)
	}
	return stored, nil
}

func writeStoredToken(path string, cfg *oauth2.Config, prev storedToken, tok *oauth2.Token) error {
	out := prev
	out.Token = tok.AccessToken
	out.AccessToken = ""
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	out.TokenType = tok.TokenType
	out.TokenURI = cfg.Endpoint.TokenURL
	out.ClientID = cfg.ClientID
	out.ClientSecret = cfg.ClientSecret
	if len(out.Scopes) == 0 {
		out.Scopes = cfg.Scopes
	}
	out.Expiry = ""
	if !tok.Expiry.IsZero() {
		out.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
	}
	if err := fileutil.WriteJSONAtomic(path, out); err != nil {
		return services.Wrap(services.ErrTransient, "youtube", "token", "save "+path, err)
	}
	return nil
}
