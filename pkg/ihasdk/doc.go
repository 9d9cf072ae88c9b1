// Package ihasdk is a Go client for the iha authorization server.
//
// # Getting Started
//
//	client := ihasdk.NewClient("https://iha.example.com")
//
//	// Machine to machine
//	tok, err := client.ClientCredentialsGrant(ctx, "svc", "secret", []string{"profile"})
//
// # Authorization Code Flow
//
// The code flow goes through golang.org/x/oauth2, configured from the
// server's endpoints:
//
//	cfg := client.OAuth2Config("web", "secret", "https://app.example.com/cb", "openid", "profile")
//	verifier := oauth2.GenerateVerifier()
//	url := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
//
//	// ... the user authenticates, the server redirects back with ?code=...
//	code, _, err := ihasdk.ParseAuthorizationCallback(callbackURL)
//	tok, err := client.ExchangeCode(ctx, cfg, code, verifier)
//
// # ID Tokens
//
// NewIDTokenVerifier reads the discovery document and returns a verifier
// bound to the server's published keys:
//
//	v, err := client.NewIDTokenVerifier(ctx, "web")
//	idToken, err := v.Verify(ctx, tok.IDToken)
//
// # Errors
//
// Every server-side rejection is returned as an *OAuth2Error carrying the
// RFC 6749 error code:
//
//	var oerr *ihasdk.OAuth2Error
//	if errors.As(err, &oerr) && oerr.Code == ihasdk.ErrorCodeInvalidGrant {
//		// ask the user to sign in again
//	}
package ihasdk
