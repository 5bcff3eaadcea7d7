package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/models"
)

// Config carries the trust and credential parameters a protocol client is
// bound to.
type Config struct {
	// HomeImmer is the origin of the user's home immer.
	HomeImmer string
	// LocalImmer is the origin of a co-located trusted immer, if any.
	LocalImmer string
	// Token is the bearer credential for the home immer.
	Token string
	// Timeout bounds each outbound request; zero means no timeout.
	Timeout time.Duration
}

type httpProtocolClient struct {
	client *resty.Client
	cfg    Config
	logger *logger.Logger

	mu    sync.RWMutex
	actor models.Activity
	place models.Activity

	inboxCursor  pageCursor
	outboxCursor pageCursor
}

// NewProtocolClient constructs a resty-backed ProtocolClient acting as actor
// at place.
func NewProtocolClient(cfg Config, actor, place models.Activity, log *logger.Logger) ProtocolClient {
	cli := resty.New()
	if cfg.Timeout > 0 {
		cli.SetTimeout(cfg.Timeout)
	}

	return &httpProtocolClient{
		client: cli,
		cfg:    cfg,
		logger: log,
		actor:  actor,
		place:  place,
	}
}

func (c *httpProtocolClient) Actor() models.Activity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actor
}

func (c *httpProtocolClient) SetActor(actor models.Activity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actor = actor
}

func (c *httpProtocolClient) Place() models.Activity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.place
}

func (c *httpProtocolClient) SetPlace(place models.Activity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.place = place
}

func (c *httpProtocolClient) TrustedIRI(iri string) bool {
	if c.cfg.LocalImmer != "" && strings.HasPrefix(iri, c.cfg.LocalImmer) {
		return true
	}
	return c.cfg.HomeImmer != "" && strings.HasPrefix(iri, c.cfg.HomeImmer)
}

func (c *httpProtocolClient) FetchObject(ctx context.Context, iri string) (models.Activity, error) {
	var resp *resty.Response
	var err error

	switch {
	case c.TrustedIRI(iri):
		resp, err = c.authedRequest(ctx).
			SetHeader("Accept", models.JSONLDMime).
			Get(iri)
	default:
		proxy := c.Actor().Endpoint("proxyUrl")
		if proxy == "" {
			return nil, ErrProxyUnavailable
		}
		resp, err = c.authedRequest(ctx).
			SetHeader("Accept", models.JSONLDMime).
			SetFormData(map[string]string{"id": iri}).
			Post(proxy)
	}
	if err != nil {
		return nil, fmt.Errorf("object fetch request: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{Status: resp.StatusCode()}
	}

	var obj models.Activity
	if err = json.Unmarshal(resp.Body(), &obj); err != nil {
		return nil, fmt.Errorf("decode object %s: %w", iri, err)
	}
	return obj, nil
}

func (c *httpProtocolClient) PostActivity(ctx context.Context, activity models.Activity) (string, error) {
	outbox := c.Actor().IRI("outbox")
	if !c.TrustedIRI(outbox) {
		return "", ErrInvalidAddress
	}

	resp, err := c.authedRequest(ctx).
		SetHeader("Content-Type", models.JSONLDMime).
		SetBody(activity).
		Post(outbox)
	if err != nil {
		return "", fmt.Errorf("activity post request: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &PostError{Status: resp.StatusCode(), Body: strings.TrimSpace(string(resp.Body()))}
	}

	return resp.Header().Get("Location"), nil
}

func (c *httpProtocolClient) PostMedia(ctx context.Context, object models.Activity, file, icon *Upload) (string, error) {
	endpoint := c.Actor().Endpoint("uploadMedia")
	if !c.TrustedIRI(endpoint) {
		return "", ErrInvalidAddress
	}

	objectJSON, err := json.Marshal(object)
	if err != nil {
		return "", fmt.Errorf("encode media object: %w", err)
	}

	req := c.authedRequest(ctx).
		SetFileReader("file", file.Name, file.Reader).
		SetFormData(map[string]string{"object": string(objectJSON)})
	if icon != nil {
		req.SetFileReader("icon", icon.Name, icon.Reader)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		return "", fmt.Errorf("media post request: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &PostError{Status: resp.StatusCode(), Body: strings.TrimSpace(string(resp.Body()))}
	}

	return resp.Header().Get("Location"), nil
}

func (c *httpProtocolClient) authedRequest(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	if c.cfg.Token != "" {
		req.SetHeader("Authorization", "Bearer "+c.cfg.Token)
	}
	return req
}
