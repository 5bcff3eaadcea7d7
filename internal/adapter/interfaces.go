// Package adapter implements the trust-aware ActivityPub client-to-server
// protocol: object fetch across the trust boundary, activity and media
// posting, paginated collection traversal, and the typed activity builders.
package adapter

import (
	"context"
	"io"

	"github.com/MKhiriev/go-immers-client/models"
)

// Upload carries one file for a multipart media post.
type Upload struct {
	// Name is the file name reported to the server.
	Name string
	// ContentType must hold the correct MIME type of the data.
	ContentType string
	// Reader supplies the file bytes.
	Reader io.Reader
}

// ProtocolClient is the low-level client-to-server API bound to one
// credential. The session coordinator builds higher-level social operations
// on top of it.
//
// The inbox and outbox pagination cursors are serialized per collection;
// callers must not rely on two concurrent Inbox calls observing distinct
// pages in a defined order.
type ProtocolClient interface {
	// Actor returns the raw actor record the client acts as.
	Actor() models.Activity
	// SetActor replaces the actor record, e.g. after a profile update.
	SetActor(actor models.Activity)
	// Place returns the Place object representing the current destination.
	Place() models.Activity
	// SetPlace replaces the destination Place used to address outgoing
	// activities.
	SetPlace(place models.Activity)

	// TrustedIRI reports whether iri's origin matches the home immer origin
	// or the optional local immer origin.
	TrustedIRI(iri string) bool

	// FetchObject retrieves an ActivityPub object. Trusted IRIs are fetched
	// directly with bearer auth; untrusted IRIs go through the home immer's
	// proxy endpoint when advertised, otherwise the call fails with
	// ErrProxyUnavailable without touching the network. Non-2xx responses
	// yield a *FetchError.
	FetchObject(ctx context.Context, iri string) (models.Activity, error)

	// PostActivity delivers an activity envelope to the user's outbox, which
	// must be trusted. Returns the IRI of the newly created resource from
	// the response Location header. Non-2xx responses yield a *PostError.
	PostActivity(ctx context.Context, activity models.Activity) (string, error)

	// PostMedia uploads a file (plus optional icon preview) together with
	// its object description to the trusted media endpoint. Same failure
	// contract as PostActivity.
	PostMedia(ctx context.Context, object models.Activity, file, icon *Upload) (string, error)

	// Inbox returns the next page of the user's inbox. The first call
	// fetches the collection root (following a summary-only root to its
	// first page); later calls follow the stored next cursor. Once a page
	// has no next reference the cursor is permanently exhausted and further
	// calls return no items without issuing a request.
	Inbox(ctx context.Context) ([]models.Activity, error)

	// Outbox behaves like Inbox for the user's outbox. The two cursors are
	// independent.
	Outbox(ctx context.Context) ([]models.Activity, error)

	// Friends fetches the friends collection: the most recent relationship
	// or location activity for each friend.
	Friends(ctx context.Context) ([]models.Activity, error)

	// BlockList eagerly walks every page of the blocked collection and
	// returns the flattened list of identity IRIs. Failures are logged and
	// swallowed; the result may be partial or empty.
	BlockList(ctx context.Context) []string

	// Typed activity builders. Each constructs the protocol envelope and
	// delegates to PostActivity or PostMedia, returning the new resource
	// IRI.

	Arrive(ctx context.Context, place models.Activity) (string, error)
	Leave(ctx context.Context, place models.Activity) (string, error)
	Follow(ctx context.Context, targetID string) (string, error)
	Accept(ctx context.Context, follow models.Activity) (string, error)
	Reject(ctx context.Context, objectID, recipientID string) (string, error)
	Block(ctx context.Context, blockeeID string) (string, error)
	Undo(ctx context.Context, object models.Activity) (string, error)
	Add(ctx context.Context, object models.Activity, target string) (string, error)
	Remove(ctx context.Context, object models.Activity, target string) (string, error)
	Create(ctx context.Context, object models.Activity) (string, error)
	Delete(ctx context.Context, object models.Activity) (string, error)
	Note(ctx context.Context, content string, to []string, audience string) (string, error)
	Image(ctx context.Context, url string, to []string, audience string) (string, error)
	Video(ctx context.Context, url string, to []string, audience string) (string, error)
	Model(ctx context.Context, name string, glb, icon *Upload, to []string, audience string) (string, error)
	UpdateProfile(ctx context.Context, update models.Activity) (string, error)
}
