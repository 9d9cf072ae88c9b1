package ihasdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Endpoint paths, relative to the base URL.
const (
	PathAuthorize = "/oauth2/authorize"
	PathToken     = "/oauth2/token"
	PathUserInfo  = "/oauth2/userinfo"
	PathJWKS      = "/.well-known/jwks.json"
	PathDiscovery = "/.well-known/openid-configuration"
)

// Client talks to one iha server. BaseURL doubles as the issuer.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client with a 10 second request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// OAuth2Config returns a golang.org/x/oauth2 config for the server's
// authorization and token endpoints.
func (c *Client) OAuth2Config(clientID, clientSecret, redirectURL string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.url(PathAuthorize),
			TokenURL: c.url(PathToken),
		},
	}
}

// NewIDTokenVerifier discovers the server and returns a verifier for ID
// tokens issued to clientID.
func (c *Client) NewIDTokenVerifier(ctx context.Context, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(c.oauth2Context(ctx), c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("discover provider: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

func (c *Client) oauth2Context(ctx context.Context) context.Context {
	if c.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}

func (c *Client) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// decodeJSON reads resp into target, or returns an *OAuth2Error when the
// status is not expectedStatus.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		if err := parseErrorResponse(resp, bodyBytes); err != nil {
			return err
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, headers map[string]string, target any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, headers)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}

// GetLiveness calls /livez.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/livez", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetReadiness calls /readyz. A degraded server answers 503, which is
// returned as an *OAuth2Error.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/readyz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetJWKS fetches the public signing keys.
func (c *Client) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	var jwks JWKSResponse
	if err := c.getJSON(ctx, PathJWKS, nil, &jwks); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// GetDiscovery fetches the OpenID Provider metadata.
func (c *Client) GetDiscovery(ctx context.Context) (*Discovery, error) {
	var d Discovery
	if err := c.getJSON(ctx, PathDiscovery, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetUserInfo returns the claims visible to accessToken.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	var info UserInfo
	err := c.getJSON(ctx, PathUserInfo, map[string]string{"Authorization": "Bearer " + accessToken}, &info)
	if err != nil {
		return nil, err
	}
	return info, nil
}
