package snapshot

import "strings"

// ResponseSnapshot is a point-in-time copy of a response produced by the
// transport layer. Post-scripts and assertions only ever read it.
type ResponseSnapshot struct {
	Status     int               `json:"status" yaml:"status"`
	StatusText string            `json:"statusText" yaml:"statusText"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       string            `json:"body,omitempty" yaml:"body,omitempty"`
	TimeMS     int64             `json:"time" yaml:"time"`
	SizeBytes  int64             `json:"size" yaml:"size"`
}

// Clone returns a deep copy of the response.
func (r *ResponseSnapshot) Clone() *ResponseSnapshot {
	if r == nil {
		return &ResponseSnapshot{}
	}
	clone := &ResponseSnapshot{
		Status:     r.Status,
		StatusText: r.StatusText,
		Body:       r.Body,
		TimeMS:     r.TimeMS,
		SizeBytes:  r.SizeBytes,
	}
	if r.Headers != nil {
		clone.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			clone.Headers[k] = v
		}
	}
	return clone
}

// HeaderValue performs a case-insensitive header lookup. The map preserves
// the casing the transport recorded; lookups should not depend on it.
func (r *ResponseSnapshot) HeaderValue(key string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
