package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/go-immers-client/internal/adapter"
	"github.com/MKhiriev/go-immers-client/internal/auth"
	"github.com/MKhiriev/go-immers-client/internal/config"
	"github.com/MKhiriev/go-immers-client/internal/discovery"
	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/internal/mapper"
	"github.com/MKhiriev/go-immers-client/internal/sanitize"
	"github.com/MKhiriev/go-immers-client/internal/store"
	"github.com/MKhiriev/go-immers-client/internal/streaming"
	"github.com/MKhiriev/go-immers-client/models"
)

// reArriveHandlerID is the single slot the connect-triggered re-arrive
// handler occupies; re-registration replaces rather than accumulates.
const reArriveHandlerID = "re-arrive"

// Options configures a Coordinator.
type Options struct {
	// Config is the loaded client configuration.
	Config config.ClientConfig
	// Opener opens authorization popups; required for Login, unused by the
	// token-based entry points.
	Opener auth.Opener
	// Events receives the coordinator's notifications.
	Events Events
	// Store overrides the session store built from Config when non-nil.
	Store store.SessionStore
	// Logger defaults to a new "client" logger when nil.
	Logger *logger.Logger
	// Place is the fully formed Place object for the current destination,
	// when the embedder already has one.
	Place models.Activity
	// Handle seeds the stored handle, e.g. captured from a link's me
	// parameter, so it is available before login.
	Handle string
}

// Coordinator owns the session lifecycle and everything bound to it.
type Coordinator struct {
	cfg       config.ClientConfig
	store     store.SessionStore
	flow      *auth.Flow
	resolver  *discovery.Resolver
	sanitizer sanitize.Sanitizer
	events    Events
	logger    *logger.Logger
	http      *resty.Client

	newProtocol protocolFactory
	newChannel  channelFactory

	mu         sync.Mutex
	loggedIn   bool
	profile    models.Profile
	credential models.Credential
	protocol   adapter.ProtocolClient
	channel    realtimeChannel
	place      models.Activity
	localPlace models.Activity

	// presenceMu serializes enter/move/exit with the reconnect-triggered
	// re-arrive handler.
	presenceMu sync.Mutex

	friendsCache []models.FriendStatus
	blocked      []string
	blockedFresh bool
	actorCache   map[string]models.Activity
}

// New constructs a Coordinator. When durable storage is enabled in the
// configuration and no store override is given, the SQLite store is opened
// (and created) here.
func New(ctx context.Context, opts Options) (*Coordinator, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewLogger("client")
	}

	cfg := opts.Config
	sessions := opts.Store
	if sessions == nil {
		if cfg.Immer.AllowStorage {
			durable, err := store.NewDurableStore(ctx, cfg.Storage, log.GetChildLogger())
			if err != nil {
				return nil, fmt.Errorf("open session store: %w", err)
			}
			sessions = durable
		} else {
			sessions = store.NewMemoryStore()
		}
	}

	httpClient := resty.New()
	if cfg.Adapter.RequestTimeout > 0 {
		httpClient.SetTimeout(cfg.Adapter.RequestTimeout)
	}

	c := &Coordinator{
		cfg:        cfg,
		store:      sessions,
		resolver:   discovery.NewResolver(cfg.Immer.LocalImmer, cfg.Adapter.RequestTimeout, log.GetChildLogger()),
		sanitizer:  sanitize.Default(),
		events:     opts.Events,
		logger:     log,
		http:       httpClient,
		place:      opts.Place,
		actorCache: make(map[string]models.Activity),
	}
	if opts.Opener != nil {
		c.flow = auth.NewFlow(opts.Opener, cfg.Adapter.RequestTimeout, log.GetChildLogger())
	}
	c.newProtocol = func(acfg adapter.Config, actor, place models.Activity) adapter.ProtocolClient {
		return adapter.NewProtocolClient(acfg, actor, place, log.GetChildLogger())
	}
	c.newChannel = func(scfg streaming.Config, handlers streaming.Handlers) realtimeChannel {
		return streaming.NewChannel(scfg, handlers, log.GetChildLogger())
	}

	if opts.Handle != "" {
		if err := sessions.SetHandle(opts.Handle); err != nil {
			log.Warn().Err(err).Msg("unable to store seeded handle")
		}
	}
	return c, nil
}

// LoginRequest describes one interactive login.
type LoginRequest struct {
	// RedirectURI is the token catcher page on the embedder's origin.
	RedirectURI string
	// Scopes is the requested permission set; "*" requests everything.
	Scopes []string
	// Handle pre-selects the user's home immer; when empty, a stored handle
	// or the configured local immer is used.
	Handle string
	// RegistrationHint deep-links the provider UI, e.g. to its registration
	// tab.
	RegistrationHint string
}

// Login runs the popup authorization flow, persists the resulting credential
// and completes session setup. Returns the granted token.
func (c *Coordinator) Login(ctx context.Context, req LoginRequest) (string, error) {
	if c.flow == nil {
		return "", fmt.Errorf("%w: no popup opener configured", ErrNotLoggedIn)
	}

	handle := req.Handle
	if handle == "" {
		handle, _ = c.store.Handle()
	}

	authOrigin := c.cfg.Immer.LocalImmer
	var parsed models.Handle
	if handle != "" {
		var err error
		if parsed, err = models.ParseHandle(handle); err != nil {
			return "", err
		}
		if authOrigin == "" {
			if authOrigin, err = config.NormalizeOrigin(parsed.Immer); err != nil {
				return "", fmt.Errorf("%w: %v", models.ErrInvalidHandle, err)
			}
		}
	}
	if authOrigin == "" {
		return "", fmt.Errorf("%w: no home immer to authorize against", models.ErrInvalidHandle)
	}

	clientID := c.Place().ID()
	if clientID == "" {
		clientID = req.RedirectURI
	}

	result, err := c.flow.RequestAuthorization(ctx, auth.Request{
		AuthOrigin:  authOrigin,
		ClientID:    clientID,
		RedirectURI: req.RedirectURI,
		Scopes:      req.Scopes,
		Handle:      parsed,
		Tab:         req.RegistrationHint,
	})
	if err != nil {
		return "", err
	}

	if err = c.store.SetCredential(result.Credential); err != nil {
		c.logger.Warn().Err(err).Msg("unable to persist credential")
	}
	if err = c.setupAfterLogin(ctx, result.Actor, result.Credential); err != nil {
		return "", err
	}
	return result.Credential.Token, nil
}

// LoginWithToken completes login from a pre-obtained credential, e.g. one
// caught by the embedder's own token catcher. The token is re-validated
// against the identity endpoint; the result reports success.
func (c *Coordinator) LoginWithToken(ctx context.Context, token, homeImmer string, scopes []string, sessionInfo map[string]string) bool {
	homeOrigin, err := config.NormalizeOrigin(homeImmer)
	if err != nil {
		c.logger.Warn().Err(err).Str("homeImmer", homeImmer).Msg("invalid home immer origin")
		return false
	}
	cred := models.Credential{
		Token:            token,
		HomeImmer:        homeOrigin,
		AuthorizedScopes: models.ExpandScopes(scopes),
		SessionInfo:      sessionInfo,
	}
	if err := c.store.SetCredential(cred); err != nil {
		c.logger.Warn().Err(err).Msg("unable to persist credential")
	}
	return c.RestoreSession(ctx)
}

// RestoreSession attempts to resume from a stored credential. It never
// returns an error: any failure leaves the coordinator logged out and yields
// false.
func (c *Coordinator) RestoreSession(ctx context.Context) bool {
	cred, ok := c.store.Credential()
	if !ok {
		return false
	}

	actor, err := auth.TokenToActor(ctx, c.http, cred.HomeImmer, cred.Token)
	if err != nil {
		c.logger.Info().Err(err).Msg("stored credential no longer valid")
		return false
	}
	if err = c.setupAfterLogin(ctx, actor, cred); err != nil {
		c.logger.Warn().Err(err).Msg("session restore setup failed")
		return false
	}
	return true
}

// setupAfterLogin binds the protocol client and realtime channel to the
// credential, wires scope-gated collection listeners and raises the
// connected notification.
func (c *Coordinator) setupAfterLogin(ctx context.Context, actor models.Activity, cred models.Credential) error {
	profile := mapper.ProfileFromActor(actor, c.sanitizer)

	handlers := streaming.Handlers{}
	if cred.AuthorizedScopes.Contains(models.ScopeViewFriends) {
		handlers.FriendsUpdate = func() { go c.publishFriendsUpdate(context.Background()) }
		handlers.BlockedUpdate = func() { go c.publishBlockedUpdate(context.Background()) }
	}
	if cred.AuthorizedScopes.Contains(models.ScopeViewPublic) {
		handlers.InboxUpdate = func(activity models.Activity) { go c.handleInboxUpdate(activity) }
	}

	protocol := c.newProtocol(adapter.Config{
		HomeImmer:  cred.HomeImmer,
		LocalImmer: c.cfg.Immer.LocalImmer,
		Token:      cred.Token,
		Timeout:    c.cfg.Adapter.RequestTimeout,
	}, actor, c.Place())

	channel := c.newChannel(streaming.Config{
		Origin:       cred.HomeImmer,
		Token:        cred.Token,
		ReconnectMin: c.cfg.Streaming.ReconnectMin,
		ReconnectMax: c.cfg.Streaming.ReconnectMax,
	}, handlers)

	if err := channel.Connect(ctx); err != nil {
		return fmt.Errorf("start realtime channel: %w", err)
	}

	c.resolver.SetHomeProxy(actor.Endpoint("proxyUrl"), cred.Token)

	c.mu.Lock()
	c.loggedIn = true
	c.profile = profile
	c.credential = cred
	c.protocol = protocol
	c.channel = channel
	c.blocked = nil
	c.blockedFresh = false
	c.mu.Unlock()

	if err := c.store.SetHandle(profile.Handle); err != nil {
		c.logger.Warn().Err(err).Msg("unable to store handle")
	}

	c.logger.Info().Str("profile", profile.ID).Msg("session established")
	if c.events.Connected != nil {
		c.events.Connected(profile)
	}
	return nil
}

// handleInboxUpdate routes an inbound activity: an Update of the user's own
// actor re-derives the profile, everything presentable becomes a new-message
// notification.
func (c *Coordinator) handleInboxUpdate(activity models.Activity) {
	if activity.Type() == "Update" && activity.Object().ID() == c.ProfileInfo().ID {
		c.handleProfileUpdate(activity.Object())
		return
	}
	message, ok := mapper.MessageFromActivity(activity, c.sanitizer)
	if !ok {
		return
	}
	if c.events.NewMessage != nil {
		c.events.NewMessage(message)
	}
}

func (c *Coordinator) handleProfileUpdate(actor models.Activity) {
	profile := mapper.ProfileFromActor(actor, c.sanitizer)

	c.mu.Lock()
	c.profile = profile
	protocol := c.protocol
	c.mu.Unlock()

	if protocol != nil {
		protocol.SetActor(actor)
	}
	if c.events.ProfileUpdate != nil {
		c.events.ProfileUpdate(profile)
	}
}

func (c *Coordinator) publishFriendsUpdate(ctx context.Context) {
	if c.events.FriendsUpdate == nil {
		return
	}
	friends, err := c.FriendsList(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("unable to refresh friends list")
		return
	}
	c.events.FriendsUpdate(friends)
}

func (c *Coordinator) publishBlockedUpdate(ctx context.Context) {
	if c.events.BlockedUpdate == nil {
		return
	}
	blocked, err := c.BlockList(ctx, true)
	if err != nil {
		c.logger.Warn().Err(err).Msg("unable to refresh block list")
		return
	}
	c.events.BlockedUpdate(blocked)
}

// Disconnect tears down the channel and protocol client but retains the
// stored credential for a later RestoreSession.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	channel := c.channel
	c.loggedIn = false
	c.channel = nil
	c.protocol = nil
	c.mu.Unlock()

	if channel != nil {
		_ = channel.Disconnect()
	}
	c.resolver.SetHomeProxy("", "")
	if c.events.Disconnected != nil {
		c.events.Disconnected()
	}
}

// Logout clears all stored identity state and disconnects. When
// terminateServerSession is set and the user's home immer is the configured
// local immer, the provider-side login session is terminated too,
// best-effort.
func (c *Coordinator) Logout(ctx context.Context, terminateServerSession bool) {
	c.mu.Lock()
	homeImmer := c.profile.HomeImmer
	c.profile = models.Profile{}
	c.credential = models.Credential{}
	c.friendsCache = nil
	c.blocked = nil
	c.blockedFresh = false
	c.actorCache = make(map[string]models.Activity)
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.logger.Warn().Err(err).Msg("unable to clear session store")
	}
	c.Disconnect()

	local := c.cfg.Immer.LocalImmer
	if terminateServerSession && local != "" {
		if homeOrigin, err := config.NormalizeOrigin(homeImmer); err == nil && homeOrigin == local {
			if _, err = c.http.R().SetContext(ctx).Post(local + "/auth/logout"); err != nil {
				c.logger.Warn().Err(err).Msg("error terminating provider session")
			}
		}
	}
}

// LoggedIn reports whether session setup has completed.
func (c *Coordinator) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// Connected reports whether the realtime channel currently has a live
// connection.
func (c *Coordinator) Connected() bool {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	return channel != nil && channel.Connected()
}

// WaitUntilConnected blocks until the realtime channel is up or ctx is
// cancelled.
func (c *Coordinator) WaitUntilConnected(ctx context.Context) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return ErrNotLoggedIn
	}
	return channel.WaitUntilConnected(ctx)
}

// ProfileInfo returns the logged-in user's profile; zero when logged out.
func (c *Coordinator) ProfileInfo() models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Handle returns the known handle, which may be available even when logged
// out.
func (c *Coordinator) Handle() (string, bool) {
	return c.store.Handle()
}

// AuthorizedScopes lists the scopes the user actually granted.
func (c *Coordinator) AuthorizedScopes() models.ScopeList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential.AuthorizedScopes
}

// SessionInfo returns the opaque passthrough fields from authorization.
func (c *Coordinator) SessionInfo() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential.SessionInfo
}

// Place returns the Place object for the current destination.
func (c *Coordinator) Place() models.Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.place
}

// hasScope reports whether the granted credential includes scope.
func (c *Coordinator) hasScope(scope string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential.AuthorizedScopes.Contains(scope)
}

// session returns the live protocol client and channel, or ErrNotLoggedIn.
func (c *Coordinator) session() (adapter.ProtocolClient, realtimeChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedIn || c.protocol == nil || c.channel == nil {
		return nil, nil, ErrNotLoggedIn
	}
	return c.protocol, c.channel, nil
}

// resolveAddressee turns a handle or IRI into a canonical identity IRI.
func (c *Coordinator) resolveAddressee(ctx context.Context, handleOrIRI string) (string, error) {
	if strings.HasPrefix(handleOrIRI, "https://") || strings.HasPrefix(handleOrIRI, "http://") {
		return handleOrIRI, nil
	}
	handle, err := models.ParseHandle(handleOrIRI)
	if err != nil {
		return "", err
	}
	return c.resolver.ResolveProfileIRI(ctx, handle)
}
