package models

import (
	"time"
)

// JSONLDMime is the content type used for all ActivityPub payloads.
const JSONLDMime = "application/activity+json"

// PublicAddress is the special addressee that makes an activity world-readable.
const PublicAddress = "as:Public"

// Activity is a raw ActivityPub object kept in its wire form. Activities,
// actors, places and collections all share this representation; typed views
// such as [Profile] and [Message] are derived from it and keep a reference
// back to the original so that follow-up operations (accept, undo, delete)
// can reuse the exact server-issued value.
type Activity map[string]any

// Str returns the string value stored under key, or "" if the key is absent
// or holds a non-string value.
func (a Activity) Str(key string) string {
	s, _ := a[key].(string)
	return s
}

// ID returns the activity's IRI.
func (a Activity) ID() string { return a.Str("id") }

// Type returns the activity's ActivityStreams type, e.g. "Arrive" or "Create".
func (a Activity) Type() string { return a.Str("type") }

// Map returns the nested object stored under key, or nil if the value is
// absent or not an object.
func (a Activity) Map(key string) Activity {
	switch v := a[key].(type) {
	case map[string]any:
		return Activity(v)
	case Activity:
		return v
	}
	return nil
}

// Actor returns the embedded actor object, or nil when the actor is given as
// a bare IRI.
func (a Activity) Actor() Activity { return a.Map("actor") }

// Object returns the embedded object, or nil when it is a bare IRI.
func (a Activity) Object() Activity { return a.Map("object") }

// Target returns the embedded target object, or nil.
func (a Activity) Target() Activity { return a.Map("target") }

// Context returns the embedded context object, or nil.
func (a Activity) Context() Activity { return a.Map("context") }

// IRI returns the identifier stored under key whether it is a bare IRI string
// or an embedded object with an id.
func (a Activity) IRI(key string) string {
	if s := a.Str(key); s != "" {
		return s
	}
	if obj := a.Map(key); obj != nil {
		return obj.ID()
	}
	return ""
}

// Published returns the activity's publication timestamp, or the zero time if
// absent or unparseable.
func (a Activity) Published() time.Time {
	t, err := time.Parse(time.RFC3339, a.Str("published"))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Endpoint returns the named entry of the actor's endpoints object, such as
// "proxyUrl" or "uploadMedia".
func (a Activity) Endpoint(name string) string {
	if eps := a.Map("endpoints"); eps != nil {
		return eps.Str(name)
	}
	return ""
}

// Stream returns the named entry of the actor's streams object, such as the
// "friends" or "blocked" collection IRI.
func (a Activity) Stream(name string) string {
	if streams := a.Map("streams"); streams != nil {
		return streams.Str(name)
	}
	return ""
}

// OrderedItems returns the page's ordered items. Entries may be embedded
// objects or bare IRI strings; bare strings are wrapped as {"id": iri} so
// callers can treat both shapes uniformly.
func (a Activity) OrderedItems() []Activity {
	raw, ok := a["orderedItems"].([]any)
	if !ok {
		return nil
	}
	items := make([]Activity, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case map[string]any:
			items = append(items, Activity(v))
		case string:
			items = append(items, Activity{"id": v})
		}
	}
	return items
}

// URLFromProperty extracts a URL string from the variety of shapes links take
// in ActivityPub objects: a bare string, {"url": ...}, {"href": ...}, or a
// nested Link object.
func URLFromProperty(prop any) string {
	switch v := prop.(type) {
	case string:
		return v
	case map[string]any:
		obj := Activity(v)
		if nested, ok := obj["url"]; ok {
			return URLFromProperty(nested)
		}
		return obj.Str("href")
	case Activity:
		return URLFromProperty(map[string]any(v))
	}
	return ""
}
