package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/models"
)

type fakePopup struct {
	closedByOpener bool
	closedByUser   chan struct{}
}

func newFakePopup() *fakePopup {
	return &fakePopup{closedByUser: make(chan struct{})}
}

func (p *fakePopup) Close()                  { p.closedByOpener = true }
func (p *fakePopup) Closed() <-chan struct{} { return p.closedByUser }

type fakeOpener struct {
	popup    *fakePopup
	err      error
	warnings []string
	opened   chan string
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{popup: newFakePopup(), opened: make(chan string, 1)}
}

func (o *fakeOpener) Open(authURL string) (Popup, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.opened <- authURL
	return o.popup, nil
}

func (o *fakeOpener) Warn(message string) { o.warnings = append(o.warnings, message) }

func TestCatchToken(t *testing.T) {
	t.Run("successful grant with passthrough fields", func(t *testing.T) {
		env, ok := CatchToken("#access_token=tok123&issuer=https%3A%2F%2Fhome.immer&scope=viewProfile%20postLocation&avatar=robot")
		require.True(t, ok)
		assert.Equal(t, EnvelopeType, env.Type)
		assert.Equal(t, "tok123", env.Token)
		assert.Equal(t, "https://home.immer", env.HomeImmer)
		assert.Equal(t, "viewProfile postLocation", env.Scope)
		assert.Equal(t, map[string]string{"avatar": "robot"}, env.SessionInfo)
	})

	t.Run("denial", func(t *testing.T) {
		env, ok := CatchToken("error=access_denied")
		require.True(t, ok)
		assert.Equal(t, "access_denied", env.Error)
		assert.Empty(t, env.Token)
	})

	t.Run("unrelated fragment yields control back", func(t *testing.T) {
		_, ok := CatchToken("#section-3")
		assert.False(t, ok)

		_, ok = CatchToken("")
		assert.False(t, ok)
	})
}

func TestAuthorizeURL(t *testing.T) {
	req := Request{
		AuthOrigin:  "https://home.immer",
		ClientID:    "https://hub.example.com/o/place",
		RedirectURI: "https://hub.example.com/callback",
		Scopes:      []string{"*"},
		Handle:      models.Handle{Username: "tester", Immer: "home.immer"},
		Tab:         "Register",
	}

	raw := AuthorizeURL(req)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/auth/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "token", query.Get("response_type"))
	assert.Equal(t, req.ClientID, query.Get("client_id"))
	assert.Equal(t, req.RedirectURI, query.Get("redirect_uri"))
	assert.Equal(t, "tester[home.immer]", query.Get("me"))
	assert.Equal(t, "Register", query.Get("tab"))

	// Wildcard expands to the full enumerated permission set.
	assert.ElementsMatch(t, models.AllScopes(), strings.Fields(query.Get("scope")))
}

func TestRequestAuthorization(t *testing.T) {
	identity := func(t *testing.T) *httptest.Server {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/me", r.URL.Path)
			require.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                "https://home.immer/u/tester",
				"type":              "Person",
				"preferredUsername": "tester",
			})
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("grant resolves to credential and actor", func(t *testing.T) {
		srv := identity(t)
		opener := newFakeOpener()
		flow := NewFlow(opener, time.Second, logger.Nop())

		done := make(chan struct{})
		var result *Result
		var err error
		go func() {
			defer close(done)
			result, err = flow.RequestAuthorization(context.Background(), Request{
				AuthOrigin: srv.URL,
				ClientID:   "https://hub.example.com/o/place",
				Scopes:     []string{models.ScopeViewProfile},
			})
		}()

		<-opener.opened
		require.True(t, flow.Deliver(Envelope{
			Type:      EnvelopeType,
			Token:     "tok123",
			HomeImmer: srv.URL,
			Scope:     "*",
		}))
		<-done

		require.NoError(t, err)
		assert.Equal(t, "tok123", result.Credential.Token)
		assert.Equal(t, srv.URL, result.Credential.HomeImmer)
		assert.ElementsMatch(t, models.AllScopes(), []string(result.Credential.AuthorizedScopes))
		assert.Equal(t, "tester", result.Actor.Str("preferredUsername"))
		assert.True(t, opener.popup.closedByOpener)
	})

	t.Run("denial rejects with the server reason", func(t *testing.T) {
		opener := newFakeOpener()
		flow := NewFlow(opener, time.Second, logger.Nop())

		done := make(chan error, 1)
		go func() {
			_, err := flow.RequestAuthorization(context.Background(), Request{AuthOrigin: "https://home.immer"})
			done <- err
		}()

		<-opener.opened
		require.True(t, flow.Deliver(Envelope{Type: EnvelopeType, Error: "access_denied"}))

		err := <-done
		assert.ErrorIs(t, err, ErrDenied)
		assert.ErrorContains(t, err, "access_denied")
	})

	t.Run("user closing the window ends the round", func(t *testing.T) {
		opener := newFakeOpener()
		flow := NewFlow(opener, time.Second, logger.Nop())

		done := make(chan error, 1)
		go func() {
			_, err := flow.RequestAuthorization(context.Background(), Request{AuthOrigin: "https://home.immer"})
			done <- err
		}()

		<-opener.opened
		close(opener.popup.closedByUser)

		assert.ErrorIs(t, <-done, ErrPopupClosed)
	})

	t.Run("blocked popup warns and waits for cancellation", func(t *testing.T) {
		opener := newFakeOpener()
		opener.err = assert.AnError
		flow := NewFlow(opener, time.Second, logger.Nop())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := flow.RequestAuthorization(ctx, Request{AuthOrigin: "https://home.immer"})
			done <- err
		}()

		// The round stays pending until cancelled.
		select {
		case err := <-done:
			t.Fatalf("round resolved before cancellation: %v", err)
		case <-time.After(50 * time.Millisecond):
		}

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
		require.Len(t, opener.warnings, 1)
	})

	t.Run("second concurrent round is rejected", func(t *testing.T) {
		opener := newFakeOpener()
		flow := NewFlow(opener, time.Second, logger.Nop())

		go func() {
			_, _ = flow.RequestAuthorization(context.Background(), Request{AuthOrigin: "https://home.immer"})
		}()
		<-opener.opened

		_, err := flow.RequestAuthorization(context.Background(), Request{AuthOrigin: "https://home.immer"})
		assert.ErrorIs(t, err, ErrFlowBusy)

		close(opener.popup.closedByUser)
	})

	t.Run("envelope of the wrong type is ignored", func(t *testing.T) {
		flow := NewFlow(newFakeOpener(), time.Second, logger.Nop())
		assert.False(t, flow.Deliver(Envelope{Type: "something-else", Token: "tok"}))
	})
}
