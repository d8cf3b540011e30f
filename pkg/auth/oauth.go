package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
)

// TumblrEndpoint is Tumblr's OAuth 1.0a endpoint set
var TumblrEndpoint = oauth1.Endpoint{
	RequestTokenURL: "https://www.tumblr.com/oauth/request_token",
	AuthorizeURL:    "https://www.tumblr.com/oauth/authorize",
	AccessTokenURL:  "https://www.tumblr.com/oauth/access_token",
}

// DefaultCallbackURL must match the callback registered for the app
const DefaultCallbackURL = "http://localhost"

// Handshake walks the three-legged flow: request token, user authorization,
// access token. The user pastes the URL they were redirected to.
type Handshake struct {
	config        *oauth1.Config
	requestToken  string
	requestSecret string
}

// NewHandshake prepares a flow against endpoint; an empty callback means
// DefaultCallbackURL
func NewHandshake(consumerKey, consumerSecret, callback string, endpoint oauth1.Endpoint) *Handshake {
	if callback == "" {
		callback = DefaultCallbackURL
	}
	return &Handshake{config: &oauth1.Config{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		CallbackURL:    callback,
		Endpoint:       endpoint,
	}}
}

// Start obtains a request token and returns the URL the user must visit
func (h *Handshake) Start() (string, error) {
	token, secret, err := h.config.RequestToken()
	if err != nil {
		return "", fmt.Errorf("failed to obtain request token: %w", err)
	}
	h.requestToken, h.requestSecret = token, secret

	u, err := h.config.AuthorizationURL(token)
	if err != nil {
		return "", fmt.Errorf("failed to build authorization URL: %w", err)
	}
	return u.String(), nil
}

// Finish exchanges the pasted redirect URL (or a bare verifier) for an access token
func (h *Handshake) Finish(redirect string) (*Account, error) {
	if h.requestToken == "" {
		return nil, errors.New("handshake not started")
	}
	verifier, err := ParseVerifier(redirect)
	if err != nil {
		return nil, err
	}

	token, secret, err := h.config.AccessToken(h.requestToken, h.requestSecret, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}
	return &Account{
		ConsumerKey:    h.config.ConsumerKey,
		ConsumerSecret: h.config.ConsumerSecret,
		Token:          token,
		TokenSecret:    secret,
	}, nil
}

// ParseVerifier pulls oauth_verifier out of a redirect URL. Input without a
// query string is taken as the verifier itself.
func ParseVerifier(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("no redirect URL provided")
	}
	if !strings.Contains(input, "?") && !strings.Contains(input, "=") {
		return input, nil
	}

	raw := input
	if i := strings.Index(raw, "?"); i >= 0 {
		raw = raw[i+1:]
	}
	raw, _, _ = strings.Cut(raw, "#")
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect URL: %w", err)
	}
	verifier := values.Get("oauth_verifier")
	if verifier == "" {
		return "", errors.New("redirect URL has no oauth_verifier parameter")
	}
	return verifier, nil
}
