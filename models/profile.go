package models

// Well-known named collections advertised by an actor.
const (
	CollectionAvatars             = "avatars"
	CollectionBlocked             = "blocked"
	CollectionDestinations        = "destinations"
	CollectionFriends             = "friends"
	CollectionFriendsDestinations = "friendsDestinations"
	CollectionInbox               = "inbox"
	CollectionOutbox              = "outbox"
)

// Profile is the normalized view of a raw Actor record. It is re-derived
// whenever a profile-update notification arrives.
type Profile struct {
	// ID is the globally unique ActivityPub IRI of the actor.
	ID string `json:"id"`

	// Handle is the compact shareable identifier, username[home.immer].
	Handle string `json:"handle"`

	// DisplayName is the user's changeable preferred name; may contain
	// spaces and symbols.
	DisplayName string `json:"display_name"`

	// Username is the user's permanent identifier within their home immer.
	Username string `json:"username"`

	// HomeImmer is the hostname of the immer hosting the account.
	HomeImmer string `json:"home_immer"`

	// Bio is a sanitized HTML description of the user.
	Bio string `json:"bio,omitempty"`

	// AvatarImage is the profile icon URL.
	AvatarImage string `json:"avatar_image,omitempty"`

	// AvatarModel is the profile avatar 3D model URL.
	AvatarModel string `json:"avatar_model,omitempty"`

	// AvatarObject is the full avatar Model object, when present.
	AvatarObject Activity `json:"avatar_object,omitempty"`

	// URL is the webpage to view the full profile; falls back to ID.
	URL string `json:"url"`

	// Collections maps collection names to the URLs used to fetch related
	// activity lists. Includes the well-known names above plus any
	// user-generated collections the actor advertises.
	Collections map[string]string `json:"collections"`
}

// Destination describes a place that can be visited and shared. It is either
// supplied by the embedding application or derived from a Place object.
type Destination struct {
	// Name is the title of the destination.
	Name string `json:"name"`

	// URL is the link to visit the destination.
	URL string `json:"url"`

	// Privacy is the audience tier controlling who can view this destination
	// (AudienceDirect, AudienceFriends or AudiencePublic). Defaults to
	// friends.
	Privacy string `json:"privacy,omitempty"`

	// Description is a sanitized text summary.
	Description string `json:"description,omitempty"`

	// PreviewImage is a thumbnail image URL.
	PreviewImage string `json:"preview_image,omitempty"`

	// Immer references the parent/homepage Place object for this experience,
	// if any.
	Immer Activity `json:"immer,omitempty"`
}
