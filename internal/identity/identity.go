// Package identity resolves the respondent behind a request. The only
// trusted sources are the OIDC proxy header (set upstream, stripped from
// client input) and an operator-level dev override; anything the client
// sends itself stays untrusted.
package identity

import "net/http"

// DefaultHeader is where the OIDC auth proxy places the verified email.
const DefaultHeader = "X-Auth-Request-Email"

// Identity is the resolved respondent. Trusted is only set when the value
// came from the proxy header or the operator override, never from
// client-supplied input.
type Identity struct {
	Email   string
	Trusted bool
}

// Resolver extracts identities from incoming requests.
type Resolver struct {
	enabled     bool
	header      string
	devOverride string
}

// NewResolver builds a resolver. enabled mirrors the oidc_identity
// setting; devOverride is the local-development respondent email
// (FORMWALK_DEV_RESPONDENT) and takes precedence over the header.
func NewResolver(enabled bool, header, devOverride string) *Resolver {
	if header == "" {
		header = DefaultHeader
	}
	return &Resolver{enabled: enabled, header: header, devOverride: devOverride}
}

// FromRequest resolves the respondent for one request. Anonymous (zero
// Identity) when nothing trusted is present.
func (r *Resolver) FromRequest(req *http.Request) Identity {
	if r.devOverride != "" {
		return Identity{Email: r.devOverride, Trusted: true}
	}
	if !r.enabled || req == nil {
		return Identity{}
	}
	if email := req.Header.Get(r.header); email != "" {
		return Identity{Email: email, Trusted: true}
	}
	return Identity{}
}
