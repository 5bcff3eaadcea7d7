package models

import (
	"encoding/json"
	"strings"
)

// Credential is the bundle obtained from a successful authorization and
// required to act on the user's behalf. It is owned by the session
// coordinator, optionally mirrored to durable storage, and destroyed on
// logout.
type Credential struct {
	// Token is the opaque OAuth2 bearer token. The client never inspects it.
	Token string `json:"token"`

	// HomeImmer is the origin (scheme://host) of the user's home immer.
	HomeImmer string `json:"home_immer"`

	// AuthorizedScopes lists the scopes the user actually granted, with any
	// wildcard already expanded to the full enumerated set.
	AuthorizedScopes ScopeList `json:"authorized_scopes"`

	// SessionInfo carries any extra fields the authorization server returned
	// alongside the token (e.g. isNewUser, email, provider). The client
	// treats it as opaque.
	SessionInfo map[string]string `json:"session_info,omitempty"`
}

// ScopeList is a set of granted scopes. On the wire it may appear as a JSON
// array, a space-separated string, or the wildcard "*"; all three forms decode
// to the expanded slice.
type ScopeList []string

// UnmarshalJSON accepts both the array and the string encodings and expands
// the wildcard.
func (s *ScopeList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*s = ExpandScopes(arr)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ExpandScopes(strings.Fields(str))
	return nil
}

// Contains reports whether the given scope was granted.
func (s ScopeList) Contains(scope string) bool {
	for _, granted := range s {
		if granted == scope {
			return true
		}
	}
	return false
}
