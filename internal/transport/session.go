package transport

import (
	"net/http"

	"github.com/IceBotYT/noonlight"
	"github.com/hashicorp/go-cleanhttp"
)

// session hands out the Doer used for one Send and a release func that is
// called once the exchange, retries included, is over.
type session interface {
	acquire() (noonlight.Doer, func())
}

// ownedSession opens a fresh client per call and tears it down afterwards.
type ownedSession struct{}

func (ownedSession) acquire() (noonlight.Doer, func()) {
	c := cleanhttp.DefaultClient()
	return c, c.CloseIdleConnections
}

// borrowedSession reuses a caller-managed Doer and never closes it.
type borrowedSession struct {
	doer noonlight.Doer
}

func (b borrowedSession) acquire() (noonlight.Doer, func()) {
	return b.doer, func() {}
}

func newSession(d noonlight.Doer) session {
	if d == nil {
		return ownedSession{}
	}
	if c, ok := d.(*http.Client); ok && c == nil {
		return ownedSession{}
	}
	return borrowedSession{doer: d}
}

// doerTransport adapts a Doer to http.RoundTripper. It has no
// CloseIdleConnections, so the retry client cannot reach into a borrowed
// session's pool.
type doerTransport struct {
	doer noonlight.Doer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.doer.Do(req)
}
