package gateway

import (
	"net/url"
	"time"
)

// Descriptor describes one logical request. It is immutable per call: the
// gateway never mutates a descriptor after Send is invoked.
type Descriptor struct {
	Method string
	Path   string     // e.g. "/api/stats/overview"
	Query  url.Values // canonicalized into the fingerprint, insertion order irrelevant
	Body   any        // marshaled as JSON when non-nil

	// RawBody, when non-empty, is sent verbatim with ContentType instead of
	// a JSON body. Used for multipart uploads.
	RawBody     []byte
	ContentType string

	// Timeout overrides the default deadline policy for this call.
	Timeout time.Duration

	// Quiet exempts the call from user-facing error policy: failures are
	// returned with SuppressUserMessage set and a 401 does not tear down
	// the session. Liveness probes use this.
	Quiet bool

	Header map[string]string
}

// Fingerprint derives the stable key identifying "the same logical request":
// method + path + canonicalized query. url.Values.Encode sorts by key, which
// gives the required insertion-order independence.
func (d Descriptor) Fingerprint() string {
	fp := d.Method + " " + d.Path
	if len(d.Query) > 0 {
		fp += "?" + d.Query.Encode()
	}
	return fp
}
