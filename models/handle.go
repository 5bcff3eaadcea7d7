package models

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidHandle is returned when a handle string cannot be parsed.
var ErrInvalidHandle = errors.New("invalid immers handle")

// handleRe matches both compact forms: username[home.immer] and
// username@home.immer.
var handleRe = regexp.MustCompile(`^([^@[]+)[@[]([^\]]+)\]?$`)

// Handle is the shareable identity string of a user: a username plus the
// hostname of their home immer.
type Handle struct {
	// Username is the user's permanent identifier within their home immer.
	Username string `json:"username"`

	// Immer is the hostname of the user's home immer.
	Immer string `json:"immer"`
}

// ParseHandle parses a compact handle string. Both username[home.immer] and
// username@home.immer are accepted.
func ParseHandle(handle string) (Handle, error) {
	match := handleRe.FindStringSubmatch(handle)
	if match == nil {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return Handle{Username: match[1], Immer: match[2]}, nil
}

// String renders the canonical bracket form, username[home.immer].
func (h Handle) String() string {
	return fmt.Sprintf("%s[%s]", h.Username, h.Immer)
}

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool {
	return h.Username == "" && h.Immer == ""
}
