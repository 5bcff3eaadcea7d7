// Package mapper derives the view models from raw protocol activities. All
// functions are pure: they never touch the network and sanitize every piece
// of user-generated markup they surface.
package mapper

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/MKhiriev/go-immers-client/internal/sanitize"
	"github.com/MKhiriev/go-immers-client/models"
)

// ProfileFromActor converts a raw Actor record to a Profile.
func ProfileFromActor(actor models.Activity, s sanitize.Sanitizer) models.Profile {
	id := actor.ID()
	homeImmer := ""
	if parsed, err := url.Parse(id); err == nil {
		homeImmer = parsed.Host
	}
	username := actor.Str("preferredUsername")

	collections := map[string]string{
		models.CollectionInbox:  actor.IRI("inbox"),
		models.CollectionOutbox: actor.IRI("outbox"),
	}
	if streams := actor.Map("streams"); streams != nil {
		for name := range streams {
			if iri := streams.Str(name); iri != "" {
				collections[name] = iri
			}
		}
	}

	profileURL := models.URLFromProperty(actor["url"])
	if profileURL == "" {
		profileURL = id
	}

	return models.Profile{
		ID:           id,
		Handle:       models.Handle{Username: username, Immer: homeImmer}.String(),
		DisplayName:  actor.Str("name"),
		Username:     username,
		HomeImmer:    homeImmer,
		Bio:          s.Sanitize(actor.Str("summary")),
		AvatarImage:  models.URLFromProperty(actor["icon"]),
		AvatarModel:  models.URLFromProperty(actor["avatar"]),
		AvatarObject: actor.Map("avatar"),
		URL:          profileURL,
		Collections:  collections,
	}
}

// DestinationFromPlace converts a Place object to a Destination. Returns nil
// for a nil place.
func DestinationFromPlace(place models.Activity, s sanitize.Sanitizer) *models.Destination {
	if place == nil {
		return nil
	}
	dest := &models.Destination{
		Name:         place.Str("name"),
		URL:          models.URLFromProperty(place["url"]),
		PreviewImage: models.URLFromProperty(place["icon"]),
	}
	if dest.PreviewImage == "" {
		if parent := place.Context(); parent != nil {
			dest.PreviewImage = models.URLFromProperty(parent["icon"])
		}
	}
	if summary := place.Str("summary"); summary != "" {
		dest.Description = s.Sanitize(summary)
	}
	if parent := place.Context(); parent != nil {
		dest.Immer = parent
	}
	return dest
}

// placeAnchor renders a link to a place for status HTML; sanitized by the
// caller along with the rest of the markup.
func placeAnchor(place models.Activity) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, models.URLFromProperty(place["url"]), place.Str("name"))
}

// FriendStatusFromActivity derives a friend's relationship state from their
// most recent relationship or location activity: Arrive means online at the
// activity's target, Leave and Accept mean offline, Follow is a pending
// request in whichever direction the activity points.
func FriendStatusFromActivity(activity models.Activity, s sanitize.Sanitizer) models.FriendStatus {
	target := activity.Target()
	locationName := ""
	locationURL := ""
	if target != nil {
		locationName = target.Str("name")
		locationURL = models.URLFromProperty(target["url"])
	}

	status := models.RelationNone
	statusText := ""
	statusHTML := "<span></span>"
	actor := activity.Actor()

	switch strings.ToLower(activity.Type()) {
	case "arrive":
		status = models.FriendOnline
		statusText = fmt.Sprintf("Online at %s (%s)", locationName, locationURL)
		statusHTML = fmt.Sprintf("<span>Online at %s</span>", placeAnchor(target))
	case "leave", "accept":
		status = models.FriendOffline
		statusText = "Offline"
		statusHTML = "<span>Offline</span>"
	case "follow":
		switch {
		case actor.ID() != "":
			status = models.RequestReceived
			statusText = "Sent you a friend request"
			statusHTML = "<span>Sent you a friend request</span>"
		case activity.Object().ID() != "":
			// Outgoing request: the current user is the actor, the friend is
			// the object.
			actor = activity.Object()
			status = models.RequestSent
			statusText = "You sent a friend request"
			statusHTML = "<span>You sent a friend request</span>"
		}
	}

	return models.FriendStatus{
		Profile:      ProfileFromActor(actor, s),
		Status:       status,
		IsOnline:     status == models.FriendOnline,
		LocationName: locationName,
		LocationURL:  locationURL,
		Destination:  DestinationFromPlace(target, s),
		StatusText:   statusText,
		StatusHTML:   s.Sanitize(statusHTML),
		Activity:     activity,
	}
}

// SortFriends orders a friends list for display: online friends first, ties
// broken by most recent activity, newest first.
func SortFriends(friends []models.FriendStatus) {
	sort.SliceStable(friends, func(i, j int) bool {
		a, b := friends[i], friends[j]
		if (a.Status == models.FriendOnline) != (b.Status == models.FriendOnline) {
			return a.Status == models.FriendOnline
		}
		return a.Activity.Published().After(b.Activity.Published())
	})
}

// MessageFromActivity derives a feed Message from an activity. It reports
// false when the activity carries nothing presentable; such activities are
// excluded from the feed.
func MessageFromActivity(activity models.Activity, s sanitize.Sanitizer) (models.Message, bool) {
	msg := models.Message{
		ID:       activity.ID(),
		Type:     models.MessageOther,
		Sender:   ProfileFromActor(activity.Actor(), s),
		Activity: activity,
	}
	if published := activity.Published(); !published.IsZero() {
		msg.Timestamp = published
	} else {
		msg.Timestamp = time.Now()
	}
	if place := activity.Context(); place.Type() == "Place" {
		msg.Destination = DestinationFromPlace(place, s)
	}

	object := activity.Object()
	content := object.Str("content")
	if content == "" {
		content = activity.Str("content")
	}

	switch activity.Type() {
	case "Create":
		switch object.Type() {
		case "Note":
			msg.Type = models.MessageChat
			content = object.Str("content")
		case "Image":
			msg.Type = models.MessageMedia
			msg.MediaType = models.MediaImage
			msg.URL = models.URLFromProperty(object["url"])
			content = fmt.Sprintf(`<img class="immers-message-media" src="%s" crossorigin="anonymous">`, msg.URL)
		case "Video":
			msg.Type = models.MessageMedia
			msg.MediaType = models.MediaVideo
			msg.URL = models.URLFromProperty(object["url"])
			content = fmt.Sprintf(`<video class="immers-message-media" controls autoplay muted playsinline src="%s" crossorigin="anonymous"></video>`, msg.URL)
		}
	case "Arrive", "Leave":
		msg.Type = models.MessageStatus
		content = activity.Str("summary")
	case "Follow":
		// Automated follow-back replies are not worth surfacing.
		if activity.IRI("inReplyTo") == "" {
			msg.Type = models.MessageStatus
			if content = activity.Str("summary"); content == "" {
				content = "<span>Sent you a friend request</span>"
			}
		}
	case "Accept":
		msg.Type = models.MessageStatus
		if content = activity.Str("summary"); content == "" {
			content = "<span>Accepted your friend request</span>"
		}
	default:
		content = activity.Str("summary")
	}

	if content == "" {
		return models.Message{}, false
	}
	msg.Content = s.Sanitize(content)
	return msg, true
}
