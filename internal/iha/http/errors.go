package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/pkg/ihasdk"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// toOAuth2Error maps an engine error onto its RFC 6749 form. Server-side
// kinds are logged and answered with a bare server_error.
func toOAuth2Error(r *http.Request, err error) *ihasdk.OAuth2Error {
	var oerr *ihasdk.OAuth2Error
	if errors.As(err, &oerr) {
		return oerr
	}

	kind := domain.KindOf(err)
	if !domain.Public(kind) {
		slogx.FromContext(r.Context()).Error("request failed", "kind", kind, "err", err)
		return ihasdk.ErrServerError
	}

	return ihasdk.NewOAuth2Error(domain.HTTPStatus(kind), domain.OAuth2Code(kind), describe(kind, err))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	toOAuth2Error(r, err).WriteError(w)
}

// describe returns the message safe to show for err. Unknown accounts and
// bad passwords read the same.
func describe(kind domain.Kind, err error) string {
	switch kind {
	case domain.KindUnknownAccount, domain.KindBadCredentials:
		return "invalid credentials"
	}

	var e *domain.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return string(kind)
}
