package client

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-immers-client/internal/streaming"
	"github.com/MKhiriev/go-immers-client/models"
)

// SetPlace installs a fully formed Place object as the current destination.
func (c *Coordinator) SetPlace(place models.Activity) {
	c.mu.Lock()
	c.place = place
	protocol := c.protocol
	c.mu.Unlock()
	if protocol != nil {
		protocol.SetPlace(place)
	}
}

// SetPlaceFromURL fetches a Place object by IRI and installs it.
func (c *Coordinator) SetPlaceFromURL(ctx context.Context, iri string) error {
	place, err := c.resolver.FetchJSON(ctx, iri, models.JSONLDMime)
	if err != nil {
		return fmt.Errorf("fetch place %s: %w", iri, err)
	}
	c.SetPlace(place)
	return nil
}

// SetDestination builds a Place object from a Destination description and
// installs it. The privacy tier becomes the place's audience; the parent
// immer defaults to the local immer's own place object when one is
// configured.
func (c *Coordinator) SetDestination(ctx context.Context, dest models.Destination) error {
	place := models.Activity{
		"type": "Place",
		"name": dest.Name,
		"url":  dest.URL,
	}

	audience := []string{}
	if dest.Privacy == models.AudiencePublic {
		audience = append(audience, models.PublicAddress)
	}
	if dest.Privacy == "" || dest.Privacy == models.AudienceFriends || dest.Privacy == models.AudiencePublic {
		c.mu.Lock()
		protocol := c.protocol
		c.mu.Unlock()
		if protocol != nil {
			if followers := protocol.Actor().IRI("followers"); followers != "" {
				audience = append(audience, followers)
			}
		}
	}
	place["audience"] = audience

	if dest.Description != "" {
		place["summary"] = c.sanitizer.Sanitize(dest.Description)
	}
	if dest.PreviewImage != "" {
		place["icon"] = dest.PreviewImage
	}
	switch {
	case dest.Immer != nil:
		place["context"] = map[string]any(dest.Immer)
	case c.cfg.Immer.LocalImmer != "":
		if parent, err := c.localImmerPlace(ctx); err == nil {
			place["context"] = map[string]any(parent)
		}
	}

	c.SetPlace(place)
	return nil
}

// localImmerPlace fetches and memoizes the local immer's own place object.
func (c *Coordinator) localImmerPlace(ctx context.Context) (models.Activity, error) {
	c.mu.Lock()
	cached := c.localPlace
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	place, err := c.resolver.FetchJSON(ctx, c.cfg.Immer.LocalImmer+"/o/immer", models.JSONLDMime)
	if err != nil {
		return nil, fmt.Errorf("fetch local immer place: %w", err)
	}
	c.mu.Lock()
	c.localPlace = place
	c.mu.Unlock()
	return place, nil
}

// Enter marks the user online at the current destination and shares the
// location with friends. Requires a completed login; without the
// postLocation scope it is a logged no-op. If the channel is currently
// connected an Arrive is posted immediately; either way a re-arrive handler
// is (re)installed so presence is asserted on every future (re)connection.
func (c *Coordinator) Enter(ctx context.Context) error {
	_, channel, err := c.session()
	if err != nil {
		return err
	}
	if !c.hasScope(models.ScopePostLocation) {
		c.logger.Info().Msg("not sharing location: scope not granted")
		return nil
	}

	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()

	if channel.Connected() {
		if err := c.arrive(ctx); err != nil {
			return err
		}
	}

	// Installed unconditionally: connectivity may arrive later, and the
	// keyed slot keeps repeat Enter calls from stacking handlers.
	channel.OnConnect(reArriveHandlerID, func() {
		c.presenceMu.Lock()
		defer c.presenceMu.Unlock()
		if err := c.arrive(context.Background()); err != nil {
			c.logger.Warn().Err(err).Msg("re-arrive after reconnect failed")
		}
	})
	return nil
}

// arrive posts the Arrive and registers the deferred leave. Callers hold
// presenceMu.
func (c *Coordinator) arrive(ctx context.Context) error {
	protocol, channel, err := c.session()
	if err != nil {
		return err
	}
	place := protocol.Place()

	if _, err := protocol.Arrive(ctx, place); err != nil {
		return fmt.Errorf("post arrive: %w", err)
	}

	actor := protocol.Actor()
	c.mu.Lock()
	token := c.credential.Token
	c.mu.Unlock()

	reg := streaming.LeaveRegistration{
		Outbox:        actor.IRI("outbox"),
		Authorization: "Bearer " + token,
		Leave: models.Activity{
			"type":   "Leave",
			"actor":  actor.ID(),
			"target": map[string]any(place),
			"to":     []string{actor.IRI("followers")},
		},
	}
	if err := channel.PrepareLeaveOnDisconnect(reg); err != nil {
		c.logger.Warn().Err(err).Msg("unable to register deferred leave")
	}
	return nil
}

// Exit marks the user offline: posts Leave, withdraws the deferred-leave
// registration and removes the re-arrive handler so an unrelated later
// reconnect posts nothing.
func (c *Coordinator) Exit(ctx context.Context) error {
	protocol, channel, err := c.session()
	if err != nil {
		return err
	}
	if !c.hasScope(models.ScopePostLocation) {
		c.logger.Info().Msg("not sharing location: scope not granted")
		return nil
	}

	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()
	channel.RemoveConnectHandler(reArriveHandlerID)

	if _, err := protocol.Leave(ctx, protocol.Place()); err != nil {
		return fmt.Errorf("post leave: %w", err)
	}
	if err := channel.ClearLeaveOnDisconnect(); err != nil {
		c.logger.Warn().Err(err).Msg("unable to clear deferred leave")
	}
	return nil
}

// Move exits the current destination and enters dest. The two steps are not
// atomic: when the leave fails the move stops there and the user remains at
// the old destination.
func (c *Coordinator) Move(ctx context.Context, dest models.Destination) error {
	if err := c.Exit(ctx); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if err := c.SetDestination(ctx, dest); err != nil {
		return err
	}
	return c.Enter(ctx)
}
