// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package config loads and validates the client configuration from
// environment variables, with an optional JSON file merged on top.
package config

import (
	"encoding/json"
	"time"
)

// ClientConfig is the top-level configuration for the immers client runtime.
// It is populated by merging environment variables with an optional JSON
// file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type ClientConfig struct {
	// Immer holds federation-level settings such as the local immer origin.
	Immer Immer `envPrefix:"IMMER_" json:"immer,omitempty"`

	// Adapter holds network settings used by the protocol client.
	Adapter Adapter `envPrefix:"ADAPTER_" json:"adapter,omitempty"`

	// Storage holds the durable session store settings.
	Storage Storage `envPrefix:"STORAGE_" json:"storage,omitempty"`

	// Streaming holds realtime channel settings.
	Streaming Streaming `envPrefix:"STREAMING_" json:"streaming,omitempty"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables.
	// Env: IMMERS_CONFIG
	JSONFilePath string `env:"IMMERS_CONFIG" json:"-"`
}

// Immer groups federation-level settings.
type Immer struct {
	// LocalImmer is the origin or hostname of a local immers server trusted
	// by this destination, if one exists. Enables direct fetches and the
	// local proxy route. Optional.
	// Env: IMMER_LOCAL_ORIGIN
	LocalImmer string `env:"LOCAL_ORIGIN" json:"local_origin"`

	// AllowStorage enables durable persistence of the handle and credential
	// for session restore. The embedder is responsible for any compliance
	// notices this requires.
	// Env: IMMER_ALLOW_STORAGE
	AllowStorage bool `env:"ALLOW_STORAGE" json:"allow_storage"`
}

// Adapter holds network settings used by the protocol client transport.
type Adapter struct {
	// RequestTimeout is the default timeout for outbound requests. Zero
	// means no timeout, matching the protocol's suspension-point model;
	// callers needing bounded latency set this or pass their own context
	// deadline.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" json:"request_timeout"`
}

// Storage holds the durable session store settings.
type Storage struct {
	// DSN is the SQLite connection string for the session store, e.g. a
	// file path. Only used when Immer.AllowStorage is true.
	// Env: STORAGE_DSN
	DSN string `env:"DSN" json:"dsn"`
}

// Streaming holds realtime channel settings.
type Streaming struct {
	// ReconnectMin is the initial delay before a reconnection attempt.
	// Env: STREAMING_RECONNECT_MIN
	ReconnectMin time.Duration `env:"RECONNECT_MIN" json:"reconnect_min"`

	// ReconnectMax caps the exponential reconnection backoff.
	// Env: STREAMING_RECONNECT_MAX
	ReconnectMax time.Duration `env:"RECONNECT_MAX" json:"reconnect_max"`
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h" and "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
