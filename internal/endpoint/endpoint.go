// Package endpoint resolves the base URL of a Noonlight resource family.
package endpoint

import (
	"net/url"
	"strings"

	"github.com/IceBotYT/noonlight"
)

// Family is the path of a resource family under the API host.
type Family string

const (
	Alarms        Family = "dispatch/v1/alarms"
	Verifications Family = "tasks/v1/verifications"
)

const (
	SandboxHost    = "api-sandbox.noonlight.com"
	ProductionHost = "api.noonlight.com"
	RootDomain     = "noonlight.com"
)

// Sandbox returns the fixed sandbox endpoint for f.
func Sandbox(f Family) string {
	return "https://" + SandboxHost + "/" + string(f)
}

// Production returns the default production endpoint for f.
func Production(f Family) string {
	return "https://" + ProductionHost + "/" + string(f)
}

// Resolve returns the base endpoint for f. In production mode a non-empty
// prodURL must be https and its host must be RootDomain or one of its
// subdomains; any path or query it carries is discarded.
func Resolve(f Family, sandbox bool, prodURL string) (string, error) {
	if sandbox {
		return Sandbox(f), nil
	}
	if prodURL == "" {
		return Production(f), nil
	}

	u, err := url.Parse(prodURL)
	if err != nil {
		return "", &noonlight.InvalidURLError{URL: prodURL, Reason: noonlight.ReasonMalformed}
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return "", &noonlight.InvalidURLError{URL: prodURL, Reason: noonlight.ReasonBadScheme}
	}
	host := strings.ToLower(u.Hostname())
	if host != RootDomain && !strings.HasSuffix(host, "."+RootDomain) {
		return "", &noonlight.InvalidURLError{URL: prodURL, Reason: noonlight.ReasonBadDomain}
	}

	return "https://" + strings.ToLower(u.Host) + "/" + string(f), nil
}

// Join appends path-escaped segments to base.
func Join(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
