// Package auth implements the popup OAuth2 implicit-grant handshake: the
// authorization URL builder, the redirect fragment token catcher, and the
// opener-side flow that waits for the structured handoff message and
// exchanges the token for the actor record.
package auth

import (
	"net/url"
	"strings"

	"github.com/MKhiriev/go-immers-client/internal/config"
)

// EnvelopeType marks the structured message posted from the authorization
// popup back to its opener.
const EnvelopeType = "ImmersAuth"

// Envelope is the cross-window handoff message. Exactly one of Token or Error
// is meaningful.
type Envelope struct {
	Type string `json:"type"`

	// Token is the granted bearer token.
	Token string `json:"token,omitempty"`
	// HomeImmer is the origin of the issuing immer.
	HomeImmer string `json:"homeImmer,omitempty"`
	// Scope is the granted scope string, space-separated or "*".
	Scope string `json:"authorizedScopes,omitempty"`
	// SessionInfo carries passthrough fragment fields, opaque to the client.
	SessionInfo map[string]string `json:"sessionInfo,omitempty"`

	// Error is the authorization server's denial reason, if any.
	Error string `json:"error,omitempty"`
}

// reserved fragment fields consumed by the token catcher; everything else is
// passed through as session info.
var reservedFragmentFields = map[string]bool{
	"access_token": true,
	"issuer":       true,
	"scope":        true,
	"error":        true,
}

// CatchToken parses an implicit-grant redirect fragment into an Envelope.
// It reports false when the fragment carries neither a token nor an error,
// in which case the page should proceed with normal processing. Callers are
// responsible for stripping the fragment from the visible URL afterwards.
func CatchToken(fragment string) (Envelope, bool) {
	fragment = strings.TrimPrefix(fragment, "#")
	values, err := url.ParseQuery(fragment)
	if err != nil {
		return Envelope{}, false
	}

	token := values.Get("access_token")
	denied := values.Get("error")
	if token == "" && denied == "" {
		return Envelope{}, false
	}

	env := Envelope{
		Type:  EnvelopeType,
		Token: token,
		Scope: values.Get("scope"),
		Error: denied,
	}
	if issuer := values.Get("issuer"); issuer != "" {
		env.HomeImmer = issuer
		if normalized, err := config.NormalizeOrigin(issuer); err == nil {
			env.HomeImmer = normalized
		}
	}

	for key := range values {
		if reservedFragmentFields[key] {
			continue
		}
		if env.SessionInfo == nil {
			env.SessionInfo = make(map[string]string)
		}
		env.SessionInfo[key] = values.Get(key)
	}
	return env, true
}
