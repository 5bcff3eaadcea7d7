package adapter

import (
	"context"
	"sync"

	"github.com/MKhiriev/go-immers-client/models"
)

// pageCursor tracks forward-only traversal of one ordered collection.
type pageCursor struct {
	mu        sync.Mutex
	next      string
	started   bool
	exhausted bool
}

func (c *httpProtocolClient) Inbox(ctx context.Context) ([]models.Activity, error) {
	return c.nextPage(ctx, &c.inboxCursor, c.Actor().IRI("inbox"))
}

func (c *httpProtocolClient) Outbox(ctx context.Context) ([]models.Activity, error) {
	return c.nextPage(ctx, &c.outboxCursor, c.Actor().IRI("outbox"))
}

// nextPage fetches the next page of an ordered collection. The first call
// starts at the collection root; a root without inline items is followed to
// its first page. Once a page carries no next reference the cursor is
// exhausted and no further requests are issued.
func (c *httpProtocolClient) nextPage(ctx context.Context, cursor *pageCursor, root string) ([]models.Activity, error) {
	cursor.mu.Lock()
	defer cursor.mu.Unlock()

	if cursor.exhausted {
		return nil, nil
	}

	target := cursor.next
	if !cursor.started {
		target = root
	}

	page, err := c.FetchObject(ctx, target)
	if err != nil {
		return nil, err
	}

	// A collection root may hold only a summary and point at its first page.
	if !cursor.started && len(page.OrderedItems()) == 0 {
		if first := page.IRI("first"); first != "" {
			if page, err = c.FetchObject(ctx, first); err != nil {
				return nil, err
			}
		}
	}
	cursor.started = true

	if next := page.IRI("next"); next != "" {
		cursor.next = next
	} else {
		cursor.exhausted = true
	}

	return page.OrderedItems(), nil
}

func (c *httpProtocolClient) Friends(ctx context.Context) ([]models.Activity, error) {
	friends := c.Actor().Endpoint("friends")
	if friends == "" {
		friends = c.Actor().Stream(models.CollectionFriends)
	}
	if friends == "" {
		return nil, ErrInvalidAddress
	}

	collection, err := c.FetchObject(ctx, friends)
	if err != nil {
		return nil, err
	}
	return collection.OrderedItems(), nil
}

func (c *httpProtocolClient) BlockList(ctx context.Context) []string {
	blocked := c.Actor().Stream(models.CollectionBlocked)
	if blocked == "" {
		c.logger.Warn().Msg("actor does not advertise a blocked collection")
		return nil
	}

	var list []string
	page, err := c.FetchObject(ctx, blocked)
	if err != nil {
		c.logger.Warn().Err(err).Msg("unable to fetch block list")
		return nil
	}
	if len(page.OrderedItems()) == 0 {
		if first := page.IRI("first"); first != "" {
			if page, err = c.FetchObject(ctx, first); err != nil {
				c.logger.Warn().Err(err).Msg("unable to fetch block list page")
				return list
			}
		}
	}

	for {
		for _, item := range page.OrderedItems() {
			if id := item.ID(); id != "" {
				list = append(list, id)
			}
		}
		next := page.IRI("next")
		if next == "" {
			return list
		}
		if page, err = c.FetchObject(ctx, next); err != nil {
			c.logger.Warn().Err(err).Msg("unable to fetch block list page")
			return list
		}
	}
}
