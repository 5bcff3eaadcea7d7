package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/models"
)

var (
	// ErrFlowBusy is returned when an authorization round is already pending.
	ErrFlowBusy = errors.New("authorization already in progress")

	// ErrPopupClosed is returned when the user closes the authorization
	// window before completing the grant.
	ErrPopupClosed = errors.New("authorization window closed")

	// ErrDenied is returned when the authorization server reports an error.
	ErrDenied = errors.New("authorization denied")

	// ErrMissingToken is returned when the handoff message carries neither a
	// token nor an error.
	ErrMissingToken = errors.New("authorization response missing token")
)

// Popup is a handle on an open authorization window.
type Popup interface {
	// Close closes the window. Only the opener side may close it.
	Close()
	// Closed is closed when the user dismisses the window themselves.
	Closed() <-chan struct{}
}

// Opener opens authorization windows on behalf of the flow. The embedding
// application supplies an implementation appropriate to its environment.
type Opener interface {
	// Open opens authURL in a new window and returns a handle on it, or an
	// error when the environment refuses (e.g. a blocked popup).
	Open(authURL string) (Popup, error)
	// Warn surfaces a synchronous user-facing warning, used when the popup
	// is blocked.
	Warn(message string)
}

// Request describes one authorization round.
type Request struct {
	// AuthOrigin is the origin of the immer to authorize against.
	AuthOrigin string
	// ClientID identifies the requesting destination, usually its place IRI.
	ClientID string
	// RedirectURI is where the grant fragment is delivered.
	RedirectURI string
	// Scopes is the requested permission set; a leading "*" expands to the
	// full enumerated set.
	Scopes []string
	// Handle pre-fills the login form when known.
	Handle models.Handle
	// Tab is a deep-link hint selecting a provider UI tab, e.g. "Register".
	Tab string
}

// AuthorizeURL builds the implicit-grant authorization URL for req.
func AuthorizeURL(req Request) string {
	query := url.Values{}
	query.Set("client_id", req.ClientID)
	query.Set("redirect_uri", req.RedirectURI)
	query.Set("response_type", "token")
	query.Set("scope", strings.Join(models.ExpandScopes(req.Scopes), " "))
	if !req.Handle.IsZero() {
		query.Set("me", req.Handle.String())
	}
	if req.Tab != "" {
		query.Set("tab", req.Tab)
	}
	return req.AuthOrigin + "/auth/authorize?" + query.Encode()
}

// Result is the normalized outcome of a successful authorization round.
type Result struct {
	Credential models.Credential
	Actor      models.Activity
}

// Flow drives the opener side of the popup handshake. One round at a time.
type Flow struct {
	client *resty.Client
	opener Opener
	logger *logger.Logger

	mu      sync.Mutex
	pending chan Envelope
}

// NewFlow constructs a Flow delivering popups through opener.
func NewFlow(opener Opener, timeout time.Duration, log *logger.Logger) *Flow {
	cli := resty.New()
	if timeout > 0 {
		cli.SetTimeout(timeout)
	}
	return &Flow{client: cli, opener: opener, logger: log}
}

// RequestAuthorization opens the authorization popup and blocks until the
// handoff message arrives, the user closes the window, or ctx is cancelled.
// ctx is the only cancellation mechanism; no timeout is applied. On success
// the granted token has already been exchanged for the actor record.
func (f *Flow) RequestAuthorization(ctx context.Context, req Request) (*Result, error) {
	f.mu.Lock()
	if f.pending != nil {
		f.mu.Unlock()
		return nil, ErrFlowBusy
	}
	pending := make(chan Envelope, 1)
	f.pending = pending
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.pending = nil
		f.mu.Unlock()
	}()

	flowID := uuid.NewString()
	authURL := AuthorizeURL(req)
	f.logger.Debug().Str("flow_id", flowID).Str("origin", req.AuthOrigin).Msg("opening authorization window")

	popup, err := f.opener.Open(authURL)
	if err != nil {
		// A blocked popup leaves the round pending; the warning is the only
		// user-visible side effect. Cancellation comes from ctx alone.
		f.opener.Warn("Could not open the login window. Please allow popups for this site and try again.")
		f.logger.Warn().Str("flow_id", flowID).Err(err).Msg("authorization window blocked")
		<-ctx.Done()
		return nil, ctx.Err()
	}

	select {
	case env := <-pending:
		// Close from the opener side; popup-side close is unsafe on some
		// engines.
		popup.Close()
		return f.finish(ctx, flowID, env)
	case <-popup.Closed():
		f.logger.Debug().Str("flow_id", flowID).Msg("authorization window closed by user")
		return nil, ErrPopupClosed
	case <-ctx.Done():
		popup.Close()
		return nil, ctx.Err()
	}
}

// Deliver hands the token catcher's envelope to the pending round. It reports
// whether a round was waiting; extra deliveries are dropped.
func (f *Flow) Deliver(env Envelope) bool {
	if env.Type != EnvelopeType {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return false
	}
	select {
	case f.pending <- env:
		return true
	default:
		return false
	}
}

func (f *Flow) finish(ctx context.Context, flowID string, env Envelope) (*Result, error) {
	if env.Error != "" {
		f.logger.Info().Str("flow_id", flowID).Str("reason", env.Error).Msg("authorization denied")
		return nil, fmt.Errorf("%w: %s", ErrDenied, env.Error)
	}
	if env.Token == "" {
		return nil, ErrMissingToken
	}

	actor, err := TokenToActor(ctx, f.client, env.HomeImmer, env.Token)
	if err != nil {
		return nil, fmt.Errorf("exchange token for actor: %w", err)
	}

	return &Result{
		Credential: models.Credential{
			Token:            env.Token,
			HomeImmer:        env.HomeImmer,
			AuthorizedScopes: models.ExpandScopes(strings.Fields(env.Scope)),
			SessionInfo:      env.SessionInfo,
		},
		Actor: actor,
	}, nil
}

// TokenToActor resolves a bearer token to the actor record it represents via
// the issuer's identity endpoint. Also used to re-validate stored credentials
// when restoring a session.
func TokenToActor(ctx context.Context, cli *resty.Client, origin, token string) (models.Activity, error) {
	resp, err := cli.R().
		SetContext(ctx).
		SetHeader("Accept", models.JSONLDMime).
		SetAuthToken(token).
		Get(origin + "/auth/me")
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("identity request: status %d", resp.StatusCode())
	}

	var actor models.Activity
	if err = json.Unmarshal(resp.Body(), &actor); err != nil {
		return nil, fmt.Errorf("decode actor: %w", err)
	}
	return actor, nil
}
