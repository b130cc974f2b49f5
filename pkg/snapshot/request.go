// Package snapshot defines the immutable request and response views the
// engine consumes. A snapshot is a point-in-time copy: the engine clones on
// the way in and returns fresh values on the way out, so callers never see
// their inputs mutated.
package snapshot

import "strings"

// Body content types understood by the transport layer.
const (
	BodyNone = "none"
	BodyJSON = "json"
	BodyText = "text"
	BodyForm = "form"
)

// Auth schemes understood by the transport layer.
const (
	AuthNone   = "none"
	AuthBasic  = "basic"
	AuthBearer = "bearer"
	AuthAPIKey = "apikey"
)

// Header is an ordered request header entry with an enabled flag. Disabled
// headers are carried for editing round-trips but never transmitted.
type Header struct {
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Auth describes how a request authenticates. Credential persistence is the
// caller's concern; the snapshot only carries the values to send.
type Auth struct {
	Type       string `json:"type" yaml:"type"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	Token      string `json:"token,omitempty" yaml:"token,omitempty"`
	HeaderName string `json:"headerName,omitempty" yaml:"headerName,omitempty"`
}

// RequestSnapshot is a point-in-time copy of a request handed to the engine.
// Pre-scripts mutate a clone through the capability binding; the original is
// never touched.
type RequestSnapshot struct {
	Method   string   `json:"method" yaml:"method"`
	URL      string   `json:"url" yaml:"url"`
	Headers  []Header `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body     string   `json:"body,omitempty" yaml:"body,omitempty"`
	BodyType string   `json:"bodyType,omitempty" yaml:"bodyType,omitempty"`
	Auth     *Auth    `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// Clone returns a deep copy of the request. A nil receiver yields an empty
// snapshot so callers can run pre-scripts without a request body of note.
func (r *RequestSnapshot) Clone() *RequestSnapshot {
	if r == nil {
		return &RequestSnapshot{}
	}
	clone := &RequestSnapshot{
		Method:   r.Method,
		URL:      r.URL,
		Body:     r.Body,
		BodyType: r.BodyType,
	}
	if r.Headers != nil {
		clone.Headers = make([]Header, len(r.Headers))
		copy(clone.Headers, r.Headers)
	}
	if r.Auth != nil {
		auth := *r.Auth
		clone.Auth = &auth
	}
	return clone
}

// HeaderValue returns the effective value for a header key, case-insensitive.
// For a repeated key the last enabled entry wins.
func (r *RequestSnapshot) HeaderValue(key string) (string, bool) {
	value := ""
	found := false
	for _, h := range r.Headers {
		if h.Enabled && strings.EqualFold(h.Key, key) {
			value = h.Value
			found = true
		}
	}
	return value, found
}

// SetHeader replaces the last enabled entry matching key (case-insensitive)
// or appends a new enabled entry when none matches.
func (r *RequestSnapshot) SetHeader(key, value string) {
	for i := len(r.Headers) - 1; i >= 0; i-- {
		if r.Headers[i].Enabled && strings.EqualFold(r.Headers[i].Key, key) {
			r.Headers[i].Value = value
			return
		}
	}
	r.Headers = append(r.Headers, Header{Key: key, Value: value, Enabled: true})
}

// RemoveHeader removes every entry matching key, case-insensitive.
func (r *RequestSnapshot) RemoveHeader(key string) {
	kept := r.Headers[:0]
	for _, h := range r.Headers {
		if !strings.EqualFold(h.Key, key) {
			kept = append(kept, h)
		}
	}
	r.Headers = kept
}
