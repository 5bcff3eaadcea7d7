package models

import "time"

// FriendState describes the current relationship to another user, derived
// from their most recent relationship or location activity.
type FriendState string

const (
	FriendOnline    FriendState = "friend-online"
	FriendOffline   FriendState = "friend-offline"
	RequestReceived FriendState = "request-received"
	RequestSent     FriendState = "request-sent"
	RelationNone    FriendState = "none"
)

// FriendStatus is the view model for one entry of the friends list.
type FriendStatus struct {
	// Profile identifies the friend.
	Profile Profile `json:"profile"`

	// Status is the current relationship descriptor.
	Status FriendState `json:"status"`

	// IsOnline reports whether the friend is currently online anywhere.
	IsOnline bool `json:"is_online"`

	// LocationName names the current or last immer visited, if known.
	LocationName string `json:"location_name,omitempty"`

	// LocationURL is the URL of the current or last immer visited.
	LocationURL string `json:"location_url,omitempty"`

	// Destination is the Destination view of the current or last location.
	Destination *Destination `json:"destination,omitempty"`

	// StatusText is a plain-text description, e.g. "Online at Park".
	StatusText string `json:"status_text"`

	// StatusHTML is a sanitized HTML description with a location link, safe
	// to render.
	StatusHTML string `json:"status_html"`

	// Activity is a non-owning reference to the raw activity this status was
	// derived from. It is required later to accept, reject or undo the
	// relationship.
	Activity Activity `json:"-"`
}

// MessageType classifies the content of a feed entry.
type MessageType string

const (
	MessageChat   MessageType = "chat"
	MessageMedia  MessageType = "media"
	MessageStatus MessageType = "status"
	MessageOther  MessageType = "other"
)

// MediaType distinguishes the kinds of media messages.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Message is the view model for one inbox/outbox activity.
type Message struct {
	// ID is the IRI of the original activity, usable as a unique id.
	ID string `json:"id"`

	// Sender is the message sender's profile.
	Sender Profile `json:"sender"`

	// Timestamp is the message sent time.
	Timestamp time.Time `json:"timestamp"`

	// Type classifies the content: chat, media, status or other.
	Type MessageType `json:"type"`

	// Content is the sanitized HTML content, safe to render. Media is
	// wrapped in the appropriate img/video markup.
	Content string `json:"content"`

	// MediaType is "image" or "video" when Type is MessageMedia.
	MediaType string `json:"media_type,omitempty"`

	// URL is the media source URL when Type is MessageMedia.
	URL string `json:"url,omitempty"`

	// Destination is the location tied to the message, if available.
	Destination *Destination `json:"destination,omitempty"`

	// Activity retains the unmodified source activity so the message can be
	// deleted or undone later.
	Activity Activity `json:"-"`
}
