package ihasdk

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// PKCE is a code verifier and its S256 challenge.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// GeneratePKCE returns a fresh verifier with its S256 challenge.
func GeneratePKCE() PKCE {
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		Method:    "S256",
	}
}

// AuthOptions returns the authorization request options for p.
func (p PKCE) AuthOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", p.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", p.Method),
	}
}

// ResponseType overrides the code response type of AuthCodeURL, e.g. with
// "code id_token".
func ResponseType(rt string) oauth2.AuthCodeOption {
	return oauth2.SetAuthURLParam("response_type", rt)
}

// Nonce sets the OpenID Connect nonce.
func Nonce(nonce string) oauth2.AuthCodeOption {
	return oauth2.SetAuthURLParam("nonce", nonce)
}

// ParseAuthorizationCallback extracts code and state from the query of a
// code flow redirect.
func ParseAuthorizationCallback(callbackURL string) (code, state string, err error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse callback URL: %w", err)
	}

	q := u.Query()
	if err := callbackError(q); err != nil {
		return "", "", err
	}

	code = q.Get("code")
	if code == "" {
		return "", "", errors.New("missing authorization code in callback")
	}
	return code, q.Get("state"), nil
}

// ParseFragmentCallback returns the parameters of a redirect that carries
// tokens in the fragment, as the implicit and hybrid flows do.
func ParseFragmentCallback(callbackURL string) (url.Values, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback URL: %w", err)
	}

	params, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback fragment: %w", err)
	}
	if err := callbackError(params); err != nil {
		return nil, err
	}
	return params, nil
}

func callbackError(params url.Values) error {
	code := params.Get("error")
	if code == "" {
		return nil
	}
	return &OAuth2Error{Code: code, Description: params.Get("error_description")}
}
