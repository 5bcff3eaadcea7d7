package adapter

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-immers-client/models"
)

// addressed returns the recipient list expanded for the requested audience
// tier: friends adds the actor's followers collection, public additionally
// makes the activity world-readable.
func (c *httpProtocolClient) addressed(to []string, audience string) []string {
	recipients := make([]string, 0, len(to)+2)
	recipients = append(recipients, to...)

	switch audience {
	case models.AudienceFriends:
		if followers := c.Actor().IRI("followers"); followers != "" {
			recipients = append(recipients, followers)
		}
	case models.AudiencePublic:
		if followers := c.Actor().IRI("followers"); followers != "" {
			recipients = append(recipients, followers)
		}
		recipients = append(recipients, models.PublicAddress)
	}
	return recipients
}

func (c *httpProtocolClient) actorName() string {
	return c.Actor().Str("name")
}

func (c *httpProtocolClient) Arrive(ctx context.Context, place models.Activity) (string, error) {
	return c.PostActivity(ctx, models.Activity{
		"type":    "Arrive",
		"actor":   c.Actor().ID(),
		"target":  map[string]any(place),
		"summary": fmt.Sprintf("%s arrived at %s", c.actorName(), place.Str("name")),
		"to":      c.addressed(nil, models.AudienceFriends),
	})
}

func (c *httpProtocolClient) Leave(ctx context.Context, place models.Activity) (string, error) {
	return c.PostActivity(ctx, models.Activity{
		"type":    "Leave",
		"actor":   c.Actor().ID(),
		"target":  map[string]any(place),
		"summary": fmt.Sprintf("%s left %s", c.actorName(), place.Str("name")),
		"to":      c.addressed(nil, models.AudienceFriends),
	})
}

func (c *httpProtocolClient) Follow(ctx context.Context, targetID string) (string, error) {
	return c.PostActivity(ctx, models.Activity{
		"type":    "Follow",
		"actor":   c.Actor().ID(),
		"object":  targetID,
		"to":      []string{targetID},
		"summary": fmt.Sprintf("%s requested to be friends", c.actorName()),
	})
}

func (c *httpProtocolClient) Accept(ctx context.Context, follow models.Activity) (string, error) {
	requester := follow.IRI("actor")
	return c.PostActivity(ctx, models.Activity{
		"type":    "Accept",
		"actor":   c.Actor().ID(),
		"object":  follow.ID(),
		"to":      []string{requester},
		"summary": fmt.Sprintf("%s accepted a friend request", c.actorName()),
	})
}

func (c *httpProtocolClient) Reject(ctx context.Context, objectID, recipientID string) (string, error) {
	return c.PostActivity(ctx, models.Activity{
		"type":   "Reject",
		"actor":  c.Actor().ID(),
		"object": objectID,
		"to":     []string{recipientID},
	})
}

func (c *httpProtocolClient) Block(ctx context.Context, blockeeID string) (string, error) {
	return c.PostActivity(ctx, models.Activity{
		"type":   "Block",
		"actor":  c.Actor().ID(),
		"object": blockeeID,
	})
}

func (c *httpProtocolClient) Undo(ctx context.Context, object models.Activity) (string, error) {
	activity := models.Activity{
		"type":   "Undo",
		"actor":  c.Actor().ID(),
		"object": object.ID(),
	}
	if to, ok := object["to"]; ok {
		activity["to"] = to
	}
	return c.PostActivity(ctx, activity)
}

func (c *httpProtocolClient) Add(ctx context.Context, object models.Activity, target string) (string, error) {
	return c.PostActivity(ctx, models.Activity{
		"type":   "Add",
		"actor":  c.Actor().ID(),
		"object": object.ID(),
		"target": target,
	})
}

func (c *httpProtocolClient) Remove(ctx context.Context, object models.Activity, target string) (string, error) {
	return c.PostActivity(ctx, models.Activity{
		"type":   "Remove",
		"actor":  c.Actor().ID(),
		"object": object.ID(),
		"target": target,
	})
}

func (c *httpProtocolClient) Create(ctx context.Context, object models.Activity) (string, error) {
	activity := models.Activity{
		"type":   "Create",
		"actor":  c.Actor().ID(),
		"object": map[string]any(object),
	}
	if to, ok := object["to"]; ok {
		activity["to"] = to
	}
	return c.PostActivity(ctx, activity)
}

func (c *httpProtocolClient) Delete(ctx context.Context, object models.Activity) (string, error) {
	activity := models.Activity{
		"type":   "Delete",
		"actor":  c.Actor().ID(),
		"object": object.ID(),
	}
	if to, ok := object["to"]; ok {
		activity["to"] = to
	}
	return c.PostActivity(ctx, activity)
}

// Note posts a chat message in the context of the current place.
func (c *httpProtocolClient) Note(ctx context.Context, content string, to []string, audience string) (string, error) {
	return c.Create(ctx, models.Activity{
		"type":    "Note",
		"content": content,
		"context": c.placeReference(),
		"to":      c.addressed(to, audience),
	})
}

func (c *httpProtocolClient) Image(ctx context.Context, url string, to []string, audience string) (string, error) {
	return c.Create(ctx, models.Activity{
		"type":    "Image",
		"url":     url,
		"context": c.placeReference(),
		"to":      c.addressed(to, audience),
	})
}

func (c *httpProtocolClient) Video(ctx context.Context, url string, to []string, audience string) (string, error) {
	return c.Create(ctx, models.Activity{
		"type":    "Video",
		"url":     url,
		"context": c.placeReference(),
		"to":      c.addressed(to, audience),
	})
}

// Model uploads a 3D avatar model with an optional preview icon.
func (c *httpProtocolClient) Model(ctx context.Context, name string, glb, icon *Upload, to []string, audience string) (string, error) {
	object := models.Activity{
		"type":    "Model",
		"name":    name,
		"context": c.placeReference(),
		"to":      c.addressed(to, audience),
	}
	return c.PostMedia(ctx, object, glb, icon)
}

func (c *httpProtocolClient) UpdateProfile(ctx context.Context, update models.Activity) (string, error) {
	object := models.Activity{"id": c.Actor().ID()}
	for key, value := range update {
		object[key] = value
	}
	return c.PostActivity(ctx, models.Activity{
		"type":   "Update",
		"actor":  c.Actor().ID(),
		"object": map[string]any(object),
		"to":     c.addressed(nil, models.AudienceFriends),
	})
}

// placeReference is the compact context object identifying the current place
// on outgoing messages.
func (c *httpProtocolClient) placeReference() map[string]any {
	place := c.Place()
	ref := map[string]any{"type": "Place"}
	if id := place.ID(); id != "" {
		ref["id"] = id
	}
	if name := place.Str("name"); name != "" {
		ref["name"] = name
	}
	if url := models.URLFromProperty(place["url"]); url != "" {
		ref["url"] = url
	}
	return ref
}
