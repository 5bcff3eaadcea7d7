package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrProxyUnavailable is returned when an untrusted IRI must be fetched
	// but the home immer does not advertise an object fetch proxy. No
	// network call is made in that case.
	ErrProxyUnavailable = errors.New("home immer does not support object fetch proxy")

	// ErrInvalidAddress is returned when a write would go to an outbox or
	// media endpoint outside the trust boundary.
	ErrInvalidAddress = errors.New("invalid outbox address")
)

// FetchError reports a non-2xx response to an object fetch.
type FetchError struct {
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("object fetch error: status %d", e.Status)
}

// PostError reports a non-2xx response to an activity or media post.
type PostError struct {
	Status int
	Body   string
}

func (e *PostError) Error() string {
	return fmt.Sprintf("activity post error: status %d: %s", e.Status, e.Body)
}
