package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*httpProtocolClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	actor := models.Activity{
		"id":        srv.URL + "/u/tester",
		"name":      "Tester",
		"inbox":     srv.URL + "/u/tester/inbox",
		"outbox":    srv.URL + "/u/tester/outbox",
		"followers": srv.URL + "/u/tester/followers",
		"endpoints": map[string]any{
			"proxyUrl":    srv.URL + "/proxy",
			"uploadMedia": srv.URL + "/media",
		},
		"streams": map[string]any{
			"friends": srv.URL + "/u/tester/friends",
			"blocked": srv.URL + "/u/tester/blocked",
		},
	}
	place := models.Activity{
		"id":   srv.URL + "/o/place",
		"type": "Place",
		"name": "Plaza",
		"url":  "https://hub.example.com/plaza",
	}

	cfg := Config{HomeImmer: srv.URL, Token: "token-123"}
	client := NewProtocolClient(cfg, actor, place, logger.Nop()).(*httpProtocolClient)
	return client, srv
}

func TestTrustedIRI(t *testing.T) {
	client := NewProtocolClient(Config{
		HomeImmer:  "https://home.immer",
		LocalImmer: "https://local.immer",
	}, nil, nil, logger.Nop())

	assert.True(t, client.TrustedIRI("https://home.immer/u/tester"))
	assert.True(t, client.TrustedIRI("https://local.immer/o/place"))
	assert.False(t, client.TrustedIRI("https://other.immer/u/stranger"))
	assert.False(t, client.TrustedIRI(""))
}

func TestFetchObject(t *testing.T) {
	t.Run("trusted IRI is fetched directly with auth", func(t *testing.T) {
		var gotAccept, gotAuth string
		mux := http.NewServeMux()
		mux.HandleFunc("/o/thing", func(w http.ResponseWriter, r *http.Request) {
			gotAccept = r.Header.Get("Accept")
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "thing", "type": "Note"})
		})
		client, srv := newTestClient(t, mux)

		obj, err := client.FetchObject(context.Background(), srv.URL+"/o/thing")
		require.NoError(t, err)
		assert.Equal(t, "Note", obj.Type())
		assert.Equal(t, models.JSONLDMime, gotAccept)
		assert.Equal(t, "Bearer token-123", gotAuth)
	})

	t.Run("untrusted IRI goes through the proxy", func(t *testing.T) {
		var gotID string
		mux := http.NewServeMux()
		mux.HandleFunc("/proxy", func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			gotID = r.PostFormValue("id")
			_ = json.NewEncoder(w).Encode(map[string]any{"id": gotID, "type": "Person"})
		})
		client, _ := newTestClient(t, mux)

		obj, err := client.FetchObject(context.Background(), "https://other.immer/u/stranger")
		require.NoError(t, err)
		assert.Equal(t, "https://other.immer/u/stranger", gotID)
		assert.Equal(t, "Person", obj.Type())
	})

	t.Run("untrusted IRI without proxy makes no request", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		actor := client.Actor()
		delete(actor, "endpoints")
		client.SetActor(actor)

		_, err := client.FetchObject(context.Background(), "https://other.immer/u/stranger")
		assert.ErrorIs(t, err, ErrProxyUnavailable)
		assert.Zero(t, calls.Load())
	})

	t.Run("non-success status yields FetchError", func(t *testing.T) {
		client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.FetchObject(context.Background(), srv.URL+"/o/missing")
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusNotFound, fetchErr.Status)
	})
}

func TestPostActivity(t *testing.T) {
	t.Run("returns the Location of the created resource", func(t *testing.T) {
		var gotType string
		mux := http.NewServeMux()
		mux.HandleFunc("/u/tester/outbox", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotType, _ = body["type"].(string)
			w.Header().Set("Location", "https://home.immer/s/abc123")
			w.WriteHeader(http.StatusCreated)
		})
		client, _ := newTestClient(t, mux)

		iri, err := client.PostActivity(context.Background(), models.Activity{"type": "Arrive"})
		require.NoError(t, err)
		assert.Equal(t, "https://home.immer/s/abc123", iri)
		assert.Equal(t, "Arrive", gotType)
	})

	t.Run("non-success status yields PostError with body", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "insufficient scope", http.StatusForbidden)
		}))

		_, err := client.PostActivity(context.Background(), models.Activity{"type": "Block"})
		var postErr *PostError
		require.ErrorAs(t, err, &postErr)
		assert.Equal(t, http.StatusForbidden, postErr.Status)
		assert.Equal(t, "insufficient scope", postErr.Body)
	})

	t.Run("untrusted outbox is rejected without a request", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		actor := client.Actor()
		actor["outbox"] = "https://evil.immer/outbox"
		client.SetActor(actor)

		_, err := client.PostActivity(context.Background(), models.Activity{"type": "Arrive"})
		assert.ErrorIs(t, err, ErrInvalidAddress)
		assert.Zero(t, calls.Load())
	})
}

func TestPostMedia(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/media", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))

		var object map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.PostFormValue("object")), &object))
		assert.Equal(t, "Model", object["type"])

		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "robot.glb", header.Filename)

		_, _, err = r.FormFile("icon")
		require.NoError(t, err)

		w.Header().Set("Location", "https://home.immer/s/model1")
		w.WriteHeader(http.StatusCreated)
	})
	client, _ := newTestClient(t, mux)

	iri, err := client.PostMedia(context.Background(),
		models.Activity{"type": "Model", "name": "Robot"},
		&Upload{Name: "robot.glb", ContentType: "model/gltf-binary", Reader: strings.NewReader("glb-bytes")},
		&Upload{Name: "robot.png", ContentType: "image/png", Reader: strings.NewReader("png-bytes")},
	)
	require.NoError(t, err)
	assert.Equal(t, "https://home.immer/s/model1", iri)
}

func TestInboxPagination(t *testing.T) {
	var requests atomic.Int32
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/u/tester/inbox", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Query().Get("page") {
		case "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":  "OrderedCollection",
				"first": srvURL + "/u/tester/inbox?page=1",
			})
		case "1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":         "OrderedCollectionPage",
				"orderedItems": []any{map[string]any{"id": "a1"}, map[string]any{"id": "a2"}},
				"next":         srvURL + "/u/tester/inbox?page=2",
			})
		case "2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":         "OrderedCollectionPage",
				"orderedItems": []any{map[string]any{"id": "a3"}},
			})
		}
	})
	client, srv := newTestClient(t, mux)
	srvURL = srv.URL

	first, err := client.Inbox(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a1", first[0].ID())

	second, err := client.Inbox(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "a3", second[0].ID())

	// Exhausted cursor: no items, no request.
	before := requests.Load()
	third, err := client.Inbox(context.Background())
	require.NoError(t, err)
	assert.Empty(t, third)
	assert.Equal(t, before, requests.Load())
}

func TestBlockList(t *testing.T) {
	t.Run("walks every page and flattens IRIs", func(t *testing.T) {
		var srvURL string
		mux := http.NewServeMux()
		mux.HandleFunc("/u/tester/blocked", func(w http.ResponseWriter, r *http.Request) {
			page := r.URL.Query().Get("page")
			switch page {
			case "":
				_ = json.NewEncoder(w).Encode(map[string]any{
					"type":  "OrderedCollection",
					"first": srvURL + "/u/tester/blocked?page=1",
				})
			case "3":
				_ = json.NewEncoder(w).Encode(map[string]any{
					"orderedItems": []any{"https://x.immer/u/e"},
				})
			default:
				base := map[string]string{"1": "ab", "2": "cd"}[page]
				items := []any{
					fmt.Sprintf("https://x.immer/u/%c", base[0]),
					map[string]any{"id": fmt.Sprintf("https://x.immer/u/%c", base[1])},
				}
				next := map[string]string{"1": "2", "2": "3"}[page]
				_ = json.NewEncoder(w).Encode(map[string]any{
					"orderedItems": items,
					"next":         srvURL + "/u/tester/blocked?page=" + next,
				})
			}
		})
		client, srv := newTestClient(t, mux)
		srvURL = srv.URL

		list := client.BlockList(context.Background())
		assert.Equal(t, []string{
			"https://x.immer/u/a",
			"https://x.immer/u/b",
			"https://x.immer/u/c",
			"https://x.immer/u/d",
			"https://x.immer/u/e",
		}, list)
	})

	t.Run("fetch failure yields the pages collected so far", func(t *testing.T) {
		var srvURL string
		mux := http.NewServeMux()
		mux.HandleFunc("/u/tester/blocked", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "2" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"orderedItems": []any{"https://x.immer/u/a"},
				"next":         srvURL + "/u/tester/blocked?page=2",
			})
		})
		client, srv := newTestClient(t, mux)
		srvURL = srv.URL

		list := client.BlockList(context.Background())
		assert.Equal(t, []string{"https://x.immer/u/a"}, list)
	})
}

func TestAudienceAddressing(t *testing.T) {
	captureTo := func(t *testing.T, audience string) []any {
		t.Helper()
		var to []any
		mux := http.NewServeMux()
		mux.HandleFunc("/u/tester/outbox", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			to, _ = body["to"].([]any)
			w.WriteHeader(http.StatusCreated)
		})
		client, _ := newTestClient(t, mux)

		_, err := client.Note(context.Background(), "hello", []string{"https://y.immer/u/friend"}, audience)
		require.NoError(t, err)
		return to
	}

	t.Run("direct audience keeps explicit recipients only", func(t *testing.T) {
		to := captureTo(t, models.AudienceDirect)
		assert.Equal(t, []any{"https://y.immer/u/friend"}, to)
	})

	t.Run("friends audience adds the followers collection", func(t *testing.T) {
		to := captureTo(t, models.AudienceFriends)
		require.Len(t, to, 2)
		assert.Contains(t, to[1], "/u/tester/followers")
	})

	t.Run("public audience adds followers and the public address", func(t *testing.T) {
		to := captureTo(t, models.AudiencePublic)
		require.Len(t, to, 3)
		assert.Equal(t, models.PublicAddress, to[2])
	})
}

func TestUndoCarriesOriginalAddressing(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/u/tester/outbox", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	})
	client, _ := newTestClient(t, mux)

	original := models.Activity{
		"id":   "https://home.immer/s/follow1",
		"type": "Follow",
		"to":   []any{"https://y.immer/u/friend"},
	}
	_, err := client.Undo(context.Background(), original)
	require.NoError(t, err)

	assert.Equal(t, "Undo", body["type"])
	assert.Equal(t, "https://home.immer/s/follow1", body["object"])
	assert.Equal(t, []any{"https://y.immer/u/friend"}, body["to"])
}

func TestFetchObjectWrapsTransportError(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := client.FetchObject(context.Background(), srv.URL+"/o/thing")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrProxyUnavailable))
}
