package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidCredentials maps provider 4xx responses on sign-in.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Client is a thin wrapper over a GoTrue-style managed identity
// provider. Email/password only; the provider owns all account state.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// SignUp registers a new account and returns its first token.
func (c *Client) SignUp(ctx context.Context, creds Credentials) (*Token, error) {
	return c.tokenRequest(ctx, "/signup", creds)
}

// SignIn performs the password grant.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (*Token, error) {
	return c.tokenRequest(ctx, "/token?grant_type=password", creds)
}

// Verify checks an access token by asking the provider for the user it
// belongs to. Used by the auth middleware on the stats endpoints.
func (c *Client) Verify(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrInvalidCredentials
	}
	return nil
}

func (c *Client) tokenRequest(ctx context.Context, path string, creds Credentials) (*Token, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("identity provider: status %d: %s", resp.StatusCode, string(data))
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("identity provider: empty access token")
	}
	return &tok, nil
}
