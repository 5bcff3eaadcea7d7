// Package client implements the session coordinator: the lifecycle owner
// that drives authorization, persists the credential, binds the protocol
// client and realtime channel to it, and exposes presence and social
// operations on top.
package client

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-immers-client/internal/adapter"
	"github.com/MKhiriev/go-immers-client/internal/streaming"
	"github.com/MKhiriev/go-immers-client/models"
)

var (
	// ErrNotLoggedIn is returned by operations that require a completed
	// login or session restore.
	ErrNotLoggedIn = errors.New("immers login required")

	// ErrNotBlocked is returned by UnblockUser when the target is not on the
	// block list; undoing an unrelated relationship would be destructive.
	ErrNotBlocked = errors.New("user not found in block list")

	// ErrInvalidAvatar is returned when an avatar object lacks a model URL.
	ErrInvalidAvatar = errors.New("invalid avatar: missing model url")

	// ErrUndeletable is returned when an activity has no deletion semantics.
	ErrUndeletable = errors.New("activity cannot be deleted")
)

// Events are the coordinator's outbound notifications. All fields are
// optional; callbacks fire on internal goroutines and must not block.
type Events struct {
	// Connected fires when login or session restore completes.
	Connected func(profile models.Profile)
	// Disconnected fires on Disconnect and Logout.
	Disconnected func()
	// FriendsUpdate fires with a fresh friends list when the server reports
	// a change.
	FriendsUpdate func(friends []models.FriendStatus)
	// BlockedUpdate fires with the refreshed block list.
	BlockedUpdate func(blocked []string)
	// NewMessage fires for each inbound activity presentable as a Message.
	NewMessage func(message models.Message)
	// ProfileUpdate fires when the user's own profile changes server-side.
	ProfileUpdate func(profile models.Profile)
}

// realtimeChannel is the coordinator's view of the streaming channel,
// narrowed for substitution in tests.
type realtimeChannel interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	WaitUntilConnected(ctx context.Context) error
	OnConnect(id string, fn func())
	RemoveConnectHandler(id string)
	PrepareLeaveOnDisconnect(reg streaming.LeaveRegistration) error
	ClearLeaveOnDisconnect() error
}

// Factories let tests substitute fakes for the protocol client and channel.
type (
	protocolFactory func(cfg adapter.Config, actor, place models.Activity) adapter.ProtocolClient
	channelFactory  func(cfg streaming.Config, handlers streaming.Handlers) realtimeChannel
)
