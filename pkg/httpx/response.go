package httpx

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// ErrorBody is the RFC 6749 section 5.2 error payload.
type ErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOAuth2Error writes an RFC 6749 error body.
func WriteOAuth2Error(w http.ResponseWriter, status int, code, description string) {
	WriteJSON(w, status, ErrorBody{Error: code, ErrorDescription: description})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ParseSpaceDelimitedFields splits a space-delimited string into fields.
// Returns nil if the input string is empty or contains only whitespace.
func ParseSpaceDelimitedFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// RedirectURL appends params to target, in the query or in the fragment.
// Existing query parameters on target are preserved.
func RedirectURL(target string, params url.Values, fragment bool) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}

	if fragment {
		u.Fragment = ""
		u.RawFragment = ""
		return u.String() + "#" + params.Encode(), nil
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
