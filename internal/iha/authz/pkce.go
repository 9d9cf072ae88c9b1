package authz

import (
	"crypto/subtle"
	"strings"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
)

// PKCE methods.
const (
	MethodPlain = "plain"
	MethodS256  = "S256"
)

// validatePKCE normalises the challenge and method of an authorization
// request. A challenge is mandatory when the client requires a proof key;
// the method defaults to S256.
func validatePKCE(challenge, method string, client domain.ClientDetails) (string, string, error) {
	challenge = strings.TrimSpace(challenge)
	method = strings.TrimSpace(method)

	if challenge == "" {
		if client.RequireProofKey {
			return "", "", domain.Newf(domain.KindInvalidCodeChallenge, "client %q requires a code_challenge", client.ClientID)
		}
		return "", "", nil
	}

	switch {
	case strings.EqualFold(method, MethodS256), method == "":
		method = MethodS256
	case strings.EqualFold(method, MethodPlain):
		method = MethodPlain
	default:
		return "", "", domain.Newf(domain.KindInvalidCodeChallenge, "unsupported code_challenge_method %q", method)
	}

	return challenge, method, nil
}

// verifyCodeVerifier checks verifier against a stored challenge. A code
// minted without a challenge only accepts an empty verifier.
func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	verifier = strings.TrimSpace(verifier)
	if challenge == "" {
		return verifier == ""
	}
	if verifier == "" {
		return false
	}

	switch {
	case method == "" || strings.EqualFold(method, MethodPlain):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case strings.EqualFold(method, MethodS256):
		expected := cryptox.ChallengeS256(verifier)
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
