// Package discovery resolves federation identities: webfinger handle lookup,
// nodeinfo metadata, and the proxy-preferring cross-origin fetch both ride
// on. Lookups are best-effort and memoized per resolver.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/models"
)

// NodeInfo schema links, newest preferred.
const (
	NodeInfoV21 = "http://nodeinfo.diaspora.software/ns/schema/2.1"
	NodeInfoV20 = "http://nodeinfo.diaspora.software/ns/schema/2.0"
)

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []webfingerLink `json:"links"`
}

// Resolver performs identity and node discovery. Cross-origin requests prefer
// the local immer's proxy, then the home immer's GET proxy, then a direct
// fetch.
type Resolver struct {
	client     *resty.Client
	localImmer string
	logger     *logger.Logger

	mu        sync.Mutex
	homeProxy string
	token     string
	handles   map[string]string
	nodeInfos map[string]models.Activity
}

// NewResolver constructs a Resolver. localImmer may be empty when no trusted
// local immer is configured.
func NewResolver(localImmer string, timeout time.Duration, log *logger.Logger) *Resolver {
	cli := resty.New()
	if timeout > 0 {
		cli.SetTimeout(timeout)
	}
	return &Resolver{
		client:     cli,
		localImmer: localImmer,
		logger:     log,
		handles:    make(map[string]string),
		nodeInfos:  make(map[string]models.Activity),
	}
}

// SetHomeProxy installs the logged-in user's home immer GET proxy and the
// token it requires. Called after login; safe to call with empty values on
// logout.
func (r *Resolver) SetHomeProxy(proxyURL, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.homeProxy = proxyURL
	r.token = token
}

// FetchJSON retrieves a cross-origin JSON document through the preferred
// proxy route.
func (r *Resolver) FetchJSON(ctx context.Context, target, accept string) (models.Activity, error) {
	body, err := r.fetch(ctx, target, accept)
	if err != nil {
		return nil, err
	}
	var doc models.Activity
	if err = json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}
	return doc, nil
}

func (r *Resolver) fetch(ctx context.Context, target, accept string) ([]byte, error) {
	if r.localImmer != "" {
		route := target
		if !strings.HasPrefix(target, r.localImmer) {
			route = r.localImmer + "/proxy/" + url.QueryEscape(target)
		}
		return r.get(ctx, route, accept, "")
	}

	r.mu.Lock()
	homeProxy, token := r.homeProxy, r.token
	r.mu.Unlock()

	if homeProxy != "" {
		// This GET proxy is distinct from the ActivityPub POST proxy used
		// for protocol objects.
		body, err := r.get(ctx, homeProxy+"/"+url.QueryEscape(target), accept, token)
		if err == nil {
			return body, nil
		}
		r.logger.Debug().Err(err).Str("url", target).Msg("home immer proxy failed, trying direct fetch")
	}

	return r.get(ctx, target, accept, "")
}

func (r *Resolver) get(ctx context.Context, target, accept, token string) ([]byte, error) {
	req := r.client.R().SetContext(ctx).SetHeader("Accept", accept)
	if token != "" {
		req.SetAuthToken(token)
	}
	resp, err := req.Get(target)
	if err != nil {
		return nil, fmt.Errorf("discovery request: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("discovery request: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// ResolveProfileIRI looks up the canonical profile IRI for a handle via
// webfinger. Results are memoized for the life of the resolver.
func (r *Resolver) ResolveProfileIRI(ctx context.Context, handle models.Handle) (string, error) {
	key := handle.String()
	r.mu.Lock()
	if iri, ok := r.handles[key]; ok {
		r.mu.Unlock()
		return iri, nil
	}
	r.mu.Unlock()

	target := fmt.Sprintf("https://%s/.well-known/webfinger?resource=acct:%s@%s",
		handle.Immer, url.QueryEscape(handle.Username), handle.Immer)
	body, err := r.fetch(ctx, target, "application/json")
	if err != nil {
		return "", fmt.Errorf("webfinger %s: %w", key, err)
	}

	var finger webfingerResponse
	if err = json.Unmarshal(body, &finger); err != nil {
		return "", fmt.Errorf("decode webfinger %s: %w", key, err)
	}

	var iri string
	for _, link := range finger.Links {
		if link.Rel == "self" {
			iri = link.Href
			break
		}
	}
	if iri == "" {
		return "", fmt.Errorf("webfinger %s: no self link", key)
	}

	r.mu.Lock()
	r.handles[key] = iri
	r.mu.Unlock()
	return iri, nil
}

// NodeInfo fetches a host's node metadata document, preferring the 2.1
// schema over 2.0. Results are memoized per host.
func (r *Resolver) NodeInfo(ctx context.Context, host string) (models.Activity, error) {
	r.mu.Lock()
	if info, ok := r.nodeInfos[host]; ok {
		r.mu.Unlock()
		return info, nil
	}
	r.mu.Unlock()

	body, err := r.fetch(ctx, "https://"+host+"/.well-known/nodeinfo", "application/json")
	if err != nil {
		return nil, fmt.Errorf("nodeinfo links %s: %w", host, err)
	}
	var links webfingerResponse
	if err = json.Unmarshal(body, &links); err != nil {
		return nil, fmt.Errorf("decode nodeinfo links %s: %w", host, err)
	}

	var infoURL string
	for _, rel := range []string{NodeInfoV21, NodeInfoV20} {
		for _, link := range links.Links {
			if link.Rel == rel {
				infoURL = link.Href
				break
			}
		}
		if infoURL != "" {
			break
		}
	}
	if infoURL == "" {
		return nil, fmt.Errorf("nodeinfo %s: no supported schema", host)
	}

	info, err := r.FetchJSON(ctx, infoURL, "application/json")
	if err != nil {
		return nil, fmt.Errorf("nodeinfo %s: %w", host, err)
	}

	r.mu.Lock()
	r.nodeInfos[host] = info
	r.mu.Unlock()
	return info, nil
}
