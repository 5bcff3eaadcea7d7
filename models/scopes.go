package models

// Scopes that can be requested during authorization. The user may grant fewer
// than requested.
const (
	ScopeViewProfile  = "viewProfile"
	ScopeViewPublic   = "viewPublic"
	ScopeViewFriends  = "viewFriends"
	ScopePostLocation = "postLocation"
	ScopeViewPrivate  = "viewPrivate"
	ScopeCreative     = "creative"
	ScopeAddFriends   = "addFriends"
	ScopeAddBlocks    = "addBlocks"
	ScopeDestructive  = "destructive"
)

// ScopeWildcard is granted by servers that authorize every scope at once.
const ScopeWildcard = "*"

// AllScopes enumerates every grantable scope, in canonical order.
func AllScopes() []string {
	return []string{
		ScopeViewProfile,
		ScopeViewPublic,
		ScopeViewFriends,
		ScopePostLocation,
		ScopeViewPrivate,
		ScopeCreative,
		ScopeAddFriends,
		ScopeAddBlocks,
		ScopeDestructive,
	}
}

// ExpandScopes normalizes a granted scope list: a leading wildcard expands to
// the full enumerated set, anything else is returned as-is.
func ExpandScopes(scopes []string) []string {
	if len(scopes) > 0 && scopes[0] == ScopeWildcard {
		return AllScopes()
	}
	return scopes
}

// Audience tiers controlling who receives and can access an outgoing
// activity.
const (
	// AudienceDirect delivers only to explicitly named addressees.
	AudienceDirect = "direct"
	// AudienceFriends additionally delivers to the actor's followers.
	AudienceFriends = "friends"
	// AudiencePublic additionally makes the activity world-readable.
	AudiencePublic = "public"
)
