package domain

import (
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/aussiebroadwan/iha/pkg/jwtx"
)

// Kind classifies every failure the engine can report.
type Kind string

const (
	// Authentication phase.
	KindUnknownAccount Kind = "unknown_account"
	KindBadCredentials Kind = "bad_credentials"
	KindDisabled       Kind = "disabled"
	KindLocked         Kind = "locked"

	// Authorization phase.
	KindInvalidScope            Kind = "invalid_scope"
	KindInvalidCodeChallenge    Kind = "invalid_code_challenge"
	KindInvalidClient           Kind = "invalid_client"
	KindInvalidRequest          Kind = "invalid_request"
	KindUnsupportedResponseType Kind = "unsupported_response_type"
	KindInvalidGrant            Kind = "invalid_grant"
	KindConsentRequired         Kind = "consent_required"
	KindAccessDenied            Kind = "access_denied"

	// Token phase.
	KindExpiredToken Kind = "expired_token"
	KindInvalidToken Kind = "invalid_token"
	KindInvalidKey   Kind = "invalid_key"
	KindEncoding     Kind = "encoding"

	// Not caused by the caller.
	KindConfiguration Kind = "configuration"
	KindPipeline      Kind = "pipeline"
	KindInternal      Kind = "internal"
)

// Error is the single error type surfaced by the engine. Match a kind with
// errors.Is against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
	Detail  map[string]any
	Err     error
}

var (
	ErrUnknownAccount          = &Error{Kind: KindUnknownAccount}
	ErrBadCredentials          = &Error{Kind: KindBadCredentials}
	ErrDisabled                = &Error{Kind: KindDisabled}
	ErrLocked                  = &Error{Kind: KindLocked}
	ErrInvalidScope            = &Error{Kind: KindInvalidScope}
	ErrInvalidCodeChallenge    = &Error{Kind: KindInvalidCodeChallenge}
	ErrInvalidClient           = &Error{Kind: KindInvalidClient}
	ErrInvalidRequest          = &Error{Kind: KindInvalidRequest}
	ErrUnsupportedResponseType = &Error{Kind: KindUnsupportedResponseType}
	ErrInvalidGrant            = &Error{Kind: KindInvalidGrant}
	ErrConsentRequired         = &Error{Kind: KindConsentRequired}
	ErrAccessDenied            = &Error{Kind: KindAccessDenied}
	ErrExpiredToken            = &Error{Kind: KindExpiredToken}
	ErrInvalidToken            = &Error{Kind: KindInvalidToken}
	ErrInvalidKey              = &Error{Kind: KindInvalidKey}
	ErrEncoding                = &Error{Kind: KindEncoding}
	ErrConfiguration           = &Error{Kind: KindConfiguration}
	ErrPipeline                = &Error{Kind: KindPipeline}
	ErrInternal                = &Error{Kind: KindInternal}
)

// New returns an error of kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithDetail returns a copy of e carrying an extra detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Detail = make(map[string]any, len(e.Detail)+1)
	maps.Copy(cp.Detail, e.Detail)
	cp.Detail[key] = value
	return &cp
}

// KindOf returns the kind of err, or KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromJWT maps codec errors onto kinds. Errors that are already tagged
// pass through untouched.
func FromJWT(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, jwtx.ErrInvalidKey):
		return Wrap(KindInvalidKey, err, "no usable key")
	case errors.Is(err, jwtx.ErrExpiredToken):
		return Wrap(KindExpiredToken, err, "token expired")
	case errors.Is(err, jwtx.ErrEncoding):
		return Wrap(KindEncoding, err, "token encoding failed")
	case errors.Is(err, jwtx.ErrInvalidToken):
		return Wrap(KindInvalidToken, err, "token rejected")
	default:
		return Wrap(KindInternal, err, "")
	}
}

// OAuth2Code is the RFC 6749 / RFC 6750 error code for a kind.
func OAuth2Code(kind Kind) string {
	switch kind {
	case KindUnknownAccount, KindBadCredentials, KindDisabled, KindLocked, KindInvalidGrant:
		return "invalid_grant"
	case KindInvalidScope:
		return "invalid_scope"
	case KindInvalidCodeChallenge, KindInvalidRequest:
		return "invalid_request"
	case KindInvalidClient:
		return "invalid_client"
	case KindUnsupportedResponseType:
		return "unsupported_response_type"
	case KindConsentRequired:
		return "consent_required"
	case KindAccessDenied:
		return "access_denied"
	case KindExpiredToken, KindInvalidToken:
		return "invalid_token"
	default:
		return "server_error"
	}
}

// HTTPStatus is the status code the token endpoint answers with for a kind.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidClient, KindExpiredToken, KindInvalidToken:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindUnknownAccount, KindBadCredentials, KindDisabled, KindLocked,
		KindInvalidScope, KindInvalidCodeChallenge, KindInvalidRequest,
		KindUnsupportedResponseType, KindInvalidGrant, KindConsentRequired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether the message of kind may be shown to the caller.
// Server-side kinds are logged, never returned.
func Public(kind Kind) bool {
	return HTTPStatus(kind) < http.StatusInternalServerError
}
