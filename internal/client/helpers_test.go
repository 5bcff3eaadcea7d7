package client

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-immers-client/internal/adapter"
	"github.com/MKhiriev/go-immers-client/internal/config"
	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/internal/store"
	"github.com/MKhiriev/go-immers-client/internal/streaming"
	"github.com/MKhiriev/go-immers-client/models"
)

// fakeProtocol records protocol calls for assertions.
type fakeProtocol struct {
	mu    sync.Mutex
	actor models.Activity
	place models.Activity

	arrives        int
	leaves         int
	follows        []string
	accepts        []models.Activity
	rejects        [][2]string
	blocks         []string
	undos          []models.Activity
	deletes        []models.Activity
	notes          []string
	updates        []models.Activity
	adds           []string
	removes        []string
	friends        []models.Activity
	inbox          []models.Activity
	outbox         []models.Activity
	blocked        []string
	blockListCalls int
	objects        map[string]models.Activity
}

func newFakeProtocol(actor, place models.Activity) *fakeProtocol {
	return &fakeProtocol{actor: actor, place: place, objects: map[string]models.Activity{}}
}

func (f *fakeProtocol) Actor() models.Activity { f.mu.Lock(); defer f.mu.Unlock(); return f.actor }
func (f *fakeProtocol) SetActor(a models.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor = a
}
func (f *fakeProtocol) Place() models.Activity { f.mu.Lock(); defer f.mu.Unlock(); return f.place }
func (f *fakeProtocol) SetPlace(p models.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.place = p
}
func (f *fakeProtocol) TrustedIRI(iri string) bool { return true }

func (f *fakeProtocol) FetchObject(_ context.Context, iri string) (models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[iri]; ok {
		return obj, nil
	}
	return nil, &adapter.FetchError{Status: 404}
}

func (f *fakeProtocol) PostActivity(_ context.Context, a models.Activity) (string, error) {
	return "https://home.immer/s/posted", nil
}

func (f *fakeProtocol) PostMedia(_ context.Context, _ models.Activity, _, _ *adapter.Upload) (string, error) {
	return "https://home.immer/s/media", nil
}

func (f *fakeProtocol) Inbox(context.Context) ([]models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inbox, nil
}

func (f *fakeProtocol) Outbox(context.Context) ([]models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outbox, nil
}

func (f *fakeProtocol) Friends(context.Context) ([]models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.friends, nil
}

func (f *fakeProtocol) BlockList(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockListCalls++
	return f.blocked
}

func (f *fakeProtocol) Arrive(context.Context, models.Activity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrives++
	return "https://home.immer/s/arrive", nil
}

func (f *fakeProtocol) Leave(context.Context, models.Activity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return "https://home.immer/s/leave", nil
}

func (f *fakeProtocol) Follow(_ context.Context, targetID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows = append(f.follows, targetID)
	return "https://home.immer/s/follow", nil
}

func (f *fakeProtocol) Accept(_ context.Context, follow models.Activity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepts = append(f.accepts, follow)
	return "https://home.immer/s/accept", nil
}

func (f *fakeProtocol) Reject(_ context.Context, objectID, recipientID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects = append(f.rejects, [2]string{objectID, recipientID})
	return "https://home.immer/s/reject", nil
}

func (f *fakeProtocol) Block(_ context.Context, blockeeID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, blockeeID)
	return "https://home.immer/s/block", nil
}

func (f *fakeProtocol) Undo(_ context.Context, object models.Activity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.undos = append(f.undos, object)
	return "https://home.immer/s/undo", nil
}

func (f *fakeProtocol) Add(_ context.Context, _ models.Activity, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, target)
	return "https://home.immer/s/add", nil
}

func (f *fakeProtocol) Remove(_ context.Context, _ models.Activity, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, target)
	return "https://home.immer/s/remove", nil
}

func (f *fakeProtocol) Create(context.Context, models.Activity) (string, error) {
	return "https://home.immer/s/create", nil
}

func (f *fakeProtocol) Delete(_ context.Context, object models.Activity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, object)
	return "https://home.immer/s/delete", nil
}

func (f *fakeProtocol) Note(_ context.Context, content string, _ []string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, content)
	return "https://home.immer/s/note", nil
}

func (f *fakeProtocol) Image(context.Context, string, []string, string) (string, error) {
	return "https://home.immer/s/image", nil
}

func (f *fakeProtocol) Video(context.Context, string, []string, string) (string, error) {
	return "https://home.immer/s/video", nil
}

func (f *fakeProtocol) Model(_ context.Context, _ string, _, _ *adapter.Upload, _ []string, _ string) (string, error) {
	return "https://home.immer/s/model", nil
}

func (f *fakeProtocol) UpdateProfile(_ context.Context, update models.Activity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return "https://home.immer/s/update", nil
}

// fakeChannel simulates the realtime channel with manual connect control.
type fakeChannel struct {
	mu          sync.Mutex
	connected   bool
	handlers    map[string]func()
	regs        []streaming.LeaveRegistration
	clears      int
	disconnects int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: map[string]func(){}}
}

func (f *fakeChannel) Connect(context.Context) error { return nil }

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
	return nil
}

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) WaitUntilConnected(ctx context.Context) error { return nil }

func (f *fakeChannel) OnConnect(id string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[id] = fn
}

func (f *fakeChannel) RemoveConnectHandler(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, id)
}

func (f *fakeChannel) PrepareLeaveOnDisconnect(reg streaming.LeaveRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return streaming.ErrNotConnected
	}
	f.regs = append(f.regs, reg)
	return nil
}

func (f *fakeChannel) ClearLeaveOnDisconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil
	}
	f.clears++
	return nil
}

func (f *fakeChannel) setConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

// fireConnect mimics a (re)connection notification.
func (f *fakeChannel) fireConnect() {
	f.mu.Lock()
	f.connected = true
	handlers := make([]func(), 0, len(f.handlers))
	for _, fn := range f.handlers {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (f *fakeChannel) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func testActorRecord() models.Activity {
	return models.Activity{
		"id":                "https://home.immer/u/tester",
		"type":              "Person",
		"name":              "Tester",
		"preferredUsername": "tester",
		"inbox":             "https://home.immer/u/tester/inbox",
		"outbox":            "https://home.immer/u/tester/outbox",
		"followers":         "https://home.immer/u/tester/followers",
		"endpoints":         map[string]any{"proxyUrl": "https://home.immer/proxy"},
		"streams": map[string]any{
			"friends": "https://home.immer/u/tester/friends",
			"blocked": "https://home.immer/u/tester/blocked",
			"avatars": "https://home.immer/u/tester/avatars",
		},
	}
}

func testPlaceRecord() models.Activity {
	return models.Activity{
		"id":   "https://hub.example.com/o/place",
		"type": "Place",
		"name": "Plaza",
		"url":  "https://hub.example.com/plaza",
	}
}

// loggedInCoordinator builds a Coordinator with fakes installed and a
// completed session.
func loggedInCoordinator(t *testing.T, events Events, scopes ...string) (*Coordinator, *fakeProtocol, *fakeChannel) {
	t.Helper()
	if scopes == nil {
		scopes = models.AllScopes()
	}

	coordinator, err := New(context.Background(), Options{
		Config: config.ClientConfig{},
		Events: events,
		Store:  store.NewMemoryStore(),
		Logger: logger.Nop(),
		Place:  testPlaceRecord(),
	})
	require.NoError(t, err)

	protocol := newFakeProtocol(testActorRecord(), testPlaceRecord())
	channel := newFakeChannel()
	coordinator.newProtocol = func(_ adapter.Config, _, _ models.Activity) adapter.ProtocolClient {
		return protocol
	}
	coordinator.newChannel = func(_ streaming.Config, _ streaming.Handlers) realtimeChannel {
		return channel
	}

	cred := models.Credential{
		Token:            "tok123",
		HomeImmer:        "https://home.immer",
		AuthorizedScopes: models.ScopeList(scopes),
	}
	require.NoError(t, coordinator.store.SetCredential(cred))
	require.NoError(t, coordinator.setupAfterLogin(context.Background(), testActorRecord(), cred))
	return coordinator, protocol, channel
}
