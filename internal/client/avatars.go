package client

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-immers-client/internal/adapter"
	"github.com/MKhiriev/go-immers-client/internal/mapper"
	"github.com/MKhiriev/go-immers-client/models"
)

// CreateAvatar uploads a 3D model as an avatar, optionally sharing it at the
// given privacy tier. Pass the direct tier with no addressees to keep it
// private; it remains visible in the user's outbox either way.
func (c *Coordinator) CreateAvatar(ctx context.Context, name string, glb, icon *adapter.Upload, privacy string, to ...string) (string, error) {
	return c.SendModel(ctx, name, glb, icon, privacy, to...)
}

// AddAvatar adds an existing avatar activity to the user's avatar
// collection.
func (c *Coordinator) AddAvatar(ctx context.Context, avatarActivity models.Activity) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	collection := c.ProfileInfo().Collections[models.CollectionAvatars]
	if collection == "" {
		return "", fmt.Errorf("avatars collection not advertised by actor")
	}
	return protocol.Add(ctx, avatarActivity, collection)
}

// UseAvatar sets avatar as the user's profile avatar. avatar may be a Model
// object or an activity carrying one as its object; it must have a model
// URL.
func (c *Coordinator) UseAvatar(ctx context.Context, avatar models.Activity) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	if object := avatar.Object(); object != nil {
		avatar = object
	}
	if models.URLFromProperty(avatar["url"]) == "" {
		return "", ErrInvalidAvatar
	}

	update := models.Activity{"avatar": map[string]any(avatar)}
	if icon, ok := avatar["icon"]; ok {
		update["icon"] = icon
	}
	return protocol.UpdateProfile(ctx, update)
}

// UseAvatarByIRI fetches the avatar object first, then behaves like
// UseAvatar.
func (c *Coordinator) UseAvatarByIRI(ctx context.Context, iri string) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	avatar, err := protocol.FetchObject(ctx, iri)
	if err != nil {
		return "", fmt.Errorf("fetch avatar %s: %w", iri, err)
	}
	return c.UseAvatar(ctx, avatar)
}

// RemoveAvatar removes an avatar activity from the user's avatar collection.
func (c *Coordinator) RemoveAvatar(ctx context.Context, avatarActivity models.Activity) (string, error) {
	protocol, _, err := c.session()
	if err != nil {
		return "", err
	}
	collection := c.ProfileInfo().Collections[models.CollectionAvatars]
	if collection == "" {
		return "", fmt.Errorf("avatars collection not advertised by actor")
	}
	return protocol.Remove(ctx, avatarActivity, collection)
}

// ResolveProfileIRI resolves a handle or IRI to the canonical identity IRI.
func (c *Coordinator) ResolveProfileIRI(ctx context.Context, handleOrIRI string) (string, error) {
	return c.resolveAddressee(ctx, handleOrIRI)
}

// GetProfile fetches another user's profile by handle or IRI. Lookups are
// memoized; a live session fetches through the protocol client, otherwise
// the proxy-preferring discovery route is used.
func (c *Coordinator) GetProfile(ctx context.Context, handleOrIRI string) (models.Profile, error) {
	iri, err := c.resolveAddressee(ctx, handleOrIRI)
	if err != nil {
		return models.Profile{}, err
	}

	c.mu.Lock()
	cached, ok := c.actorCache[iri]
	protocol := c.protocol
	c.mu.Unlock()
	if ok {
		return mapper.ProfileFromActor(cached, c.sanitizer), nil
	}

	var actor models.Activity
	if protocol != nil {
		actor, err = protocol.FetchObject(ctx, iri)
		if err != nil {
			c.logger.Debug().Err(err).Str("iri", iri).Msg("protocol profile fetch failed, trying discovery route")
			actor = nil
		}
	}
	if actor == nil {
		if actor, err = c.resolver.FetchJSON(ctx, iri, models.JSONLDMime); err != nil {
			return models.Profile{}, fmt.Errorf("fetch profile %s: %w", iri, err)
		}
	}

	c.mu.Lock()
	c.actorCache[iri] = actor
	c.mu.Unlock()
	return mapper.ProfileFromActor(actor, c.sanitizer), nil
}

// NodeInfo fetches server metadata for the immer hosting the given handle.
func (c *Coordinator) NodeInfo(ctx context.Context, handle string) (models.Activity, error) {
	parsed, err := models.ParseHandle(handle)
	if err != nil {
		return nil, err
	}
	return c.resolver.NodeInfo(ctx, parsed.Immer)
}
