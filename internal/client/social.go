package client

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MKhiriev/go-immers-client/internal/adapter"
	"github.com/MKhiriev/go-immers-client/internal/mapper"
	"github.com/MKhiriev/go-immers-client/models"
)

// FriendsList fetches the friends collection and derives the display list:
// withdrawn relationships dropped, online friends first, then most recent
// activity. The raw snapshot is cached for later accept/reject/undo.
func (c *Coordinator) FriendsList(ctx context.Context) ([]models.FriendStatus, error) {
	protocol, _, err := c.session()
	if err != nil {
		return nil, err
	}

	activities, err := protocol.Friends(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch friends: %w", err)
	}

	snapshot := make([]models.FriendStatus, 0, len(activities))
	display := make([]models.FriendStatus, 0, len(activities))
	for _, activity := range activities {
		status := mapper.FriendStatusFromActivity(activity, c.sanitizer)
		snapshot = append(snapshot, status)
		// Ex-friends have a Reject as their latest relationship activity.
		if activity.Type() != "Reject" {
			display = append(display, status)
		}
	}
	mapper.SortFriends(display)

	c.mu.Lock()
	c.friendsCache = snapshot
	c.mu.Unlock()
	return display, nil
}

// Feed merges one page each of the inbox and outbox into Messages, newest
// first. Activities with nothing presentable are dropped.
func (c *Coordinator) Feed(ctx context.Context) ([]models.Message, error) {
	protocol, _, err := c.session()
	if err != nil {
		return nil, err
	}

	inbox, err := protocol.Inbox(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch inbox: %w", err)
	}
	outbox, err := protocol.Outbox(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}

	messages := make([]models.Message, 0, len(inbox)+len(outbox))
	for _, activity := range append(inbox, outbox...) {
		if message, ok := mapper.MessageFromActivity(activity, c.sanitizer); ok {
			messages = append(messages, message)
		}
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})
	return messages, nil
}

// BlockList returns the identity IRIs of every blocked user. The full
// collection walk is expensive, so results are cached until forceRefresh or
// a blocked-update event.
func (c *Coordinator) BlockList(ctx context.Context, forceRefresh bool) ([]string, error) {
	c.mu.Lock()
	if !forceRefresh && c.blockedFresh {
		cached := append([]string(nil), c.blocked...)
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	protocol, _, err := c.session()
	if err != nil {
		return nil, err
	}
	blocked := protocol.BlockList(ctx)

	c.mu.Lock()
	c.blocked = blocked
	c.blockedFresh = true
	c.mu.Unlock()
	return append([]string(nil), blocked...), nil
}

// resolveAddressees maps a mixed list of handles and IRIs to identity IRIs.
func (c *Coordinator) resolveAddressees(ctx context.Context, to []string) ([]string, error) {
	resolved := make([]string, 0, len(to))
	for _, entry := range to {
		iri, err := c.resolveAddressee(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("resolve addressee %q: %w", entry, err)
		}
		resolved = append(resolved, iri)
	}
	return resolved, nil
}

// SendChatMessage posts a text message in the context of the current place.
// Content is sanitized before it leaves the client. privacy is one of the
// audience tiers; to accepts handles and IRIs.
func (c *Coordinator) SendChatMessage(ctx context.Context, content, privacy string, to ...string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	recipients, err := c.resolveAddressees(ctx, to)
	if err != nil {
		return "", err
	}
	return protocol.Note(ctx, c.sanitizer.Sanitize(content), recipients, privacy)
}

// SendImage shares an image by URL.
func (c *Coordinator) SendImage(ctx context.Context, url, privacy string, to ...string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	recipients, err := c.resolveAddressees(ctx, to)
	if err != nil {
		return "", err
	}
	return protocol.Image(ctx, url, recipients, privacy)
}

// SendVideo shares a video by URL.
func (c *Coordinator) SendVideo(ctx context.Context, url, privacy string, to ...string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	recipients, err := c.resolveAddressees(ctx, to)
	if err != nil {
		return "", err
	}
	return protocol.Video(ctx, url, recipients, privacy)
}

// SendModel uploads a 3D model (GLB preferred) with an optional preview
// icon and shares it at the requested privacy tier.
func (c *Coordinator) SendModel(ctx context.Context, name string, glb, icon *adapter.Upload, privacy string, to ...string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	recipients, err := c.resolveAddressees(ctx, to)
	if err != nil {
		return "", err
	}
	return protocol.Model(ctx, name, glb, icon, recipients, privacy)
}

// DeleteMessage retracts an outbox activity: presence statuses are undone,
// created content is deleted.
func (c *Coordinator) DeleteMessage(ctx context.Context, activity models.Activity) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	switch strings.ToLower(activity.Type()) {
	case "arrive", "leave":
		return protocol.Undo(ctx, activity)
	case "create":
		return protocol.Delete(ctx, activity.Object())
	}
	return "", fmt.Errorf("%w: %s", ErrUndeletable, activity.Type())
}

// DeleteMessageByIRI fetches the activity first, then behaves like
// DeleteMessage.
func (c *Coordinator) DeleteMessageByIRI(ctx context.Context, iri string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	activity, err := protocol.FetchObject(ctx, iri)
	if err != nil {
		return "", fmt.Errorf("fetch message %s: %w", iri, err)
	}
	return c.DeleteMessage(ctx, activity)
}

// UpdateProfileInfo updates the user's display name and/or bio. Empty fields
// are left unchanged; with nothing to change, no activity is posted.
func (c *Coordinator) UpdateProfileInfo(ctx context.Context, displayName, bio string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	update := models.Activity{}
	if displayName != "" {
		update["name"] = displayName
	}
	if bio != "" {
		update["summary"] = c.sanitizer.Sanitize(bio)
	}
	if len(update) == 0 {
		return "", nil
	}
	return protocol.UpdateProfile(ctx, update)
}

// cachedFriend returns the cached relationship snapshot entry for userID in
// the given state.
func (c *Coordinator) cachedFriend(userID string, state models.FriendState) (models.FriendStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, status := range c.friendsCache {
		if status.Profile.ID == userID && status.Status == state {
			return status, true
		}
	}
	return models.FriendStatus{}, false
}

// AddFriend initiates a friend request to the given handle or IRI, or, when
// a request from that user is already pending, accepts it instead. Both
// users calling this with the other's handle produces a friend connection.
func (c *Coordinator) AddFriend(ctx context.Context, handleOrIRI string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	userID, err := c.resolveAddressee(ctx, handleOrIRI)
	if err != nil {
		return "", err
	}
	if pending, ok := c.cachedFriend(userID, models.RequestReceived); ok {
		return protocol.Accept(ctx, pending.Activity)
	}
	return protocol.Follow(ctx, userID)
}

// RemoveFriend removes a relationship in whatever state it is: rejects a
// pending incoming request, cancels a pending outgoing one, or unfriends.
func (c *Coordinator) RemoveFriend(ctx context.Context, handleOrIRI string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	userID, err := c.resolveAddressee(ctx, handleOrIRI)
	if err != nil {
		return "", err
	}
	if pending, ok := c.cachedFriend(userID, models.RequestReceived); ok {
		return protocol.Reject(ctx, pending.Activity.ID(), userID)
	}
	if pending, ok := c.cachedFriend(userID, models.RequestSent); ok {
		return protocol.Undo(ctx, pending.Activity)
	}
	// The server resolves the original follow from the identity IRI.
	return protocol.Reject(ctx, userID, userID)
}

// BlockUser blocks the given user. While blocked, no activity flows between
// the two users and past messages are omitted from feeds and friends lists.
func (c *Coordinator) BlockUser(ctx context.Context, handleOrIRI string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	userID, err := c.resolveAddressee(ctx, handleOrIRI)
	if err != nil {
		return "", err
	}
	return protocol.Block(ctx, userID)
}

// UnblockUser lifts a block. The undo-by-IRI form behaves differently
// depending on relationship state, so the block is confirmed first; a
// non-blocked target is an error rather than a stray Undo.
func (c *Coordinator) UnblockUser(ctx context.Context, handleOrIRI string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	userID, err := c.resolveAddressee(ctx, handleOrIRI)
	if err != nil {
		return "", err
	}

	blocked, err := c.BlockList(ctx, false)
	if err != nil {
		return "", err
	}
	if !contains(blocked, userID) {
		if blocked, err = c.BlockList(ctx, true); err != nil {
			return "", err
		}
		if !contains(blocked, userID) {
			return "", fmt.Errorf("%w: %s", ErrNotBlocked, userID)
		}
	}
	return protocol.Undo(ctx, models.Activity{"id": userID})
}

func contains(list []string, s string) bool {
	for _, entry := range list {
		if entry == s {
			return true
		}
	}
	return false
}
