package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

type configBuilder struct {
	configs []*ClientConfig
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		configs: make([]*ClientConfig, 0, 2),
	}
}

// GetClientConfig builds and validates the merged client configuration.
// Environment variables are read first; when they name a JSON file, its
// values are merged on top.
func GetClientConfig() (*ClientConfig, error) {
	return newConfigBuilder().
		withEnv().
		withJSON().
		build()
}

func (b *configBuilder) build() (*ClientConfig, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occured during building config: %w", b.err)
	}

	config := new(ClientConfig)
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	config.applyDefaults()
	return config, config.validate()
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := &ClientConfig{}
	if err := env.Parse(envCfg); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("error getting env configs: %w", err))
		return b
	}

	b.configs = append(b.configs, envCfg)
	return b
}

func (b *configBuilder) withJSON() *configBuilder {
	var jsonPath string
	for _, cfg := range b.configs {
		if cfg.JSONFilePath != "" {
			jsonPath = cfg.JSONFilePath
		}
	}
	if jsonPath == "" {
		return b
	}

	jsonCfg, err := parseJSON(jsonPath)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	b.configs = append(b.configs, jsonCfg)
	return b
}

type jsonConfig struct {
	Immer   Immer `json:"immer"`
	Adapter struct {
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"adapter"`
	Storage   Storage `json:"storage"`
	Streaming struct {
		ReconnectMin Duration `json:"reconnect_min"`
		ReconnectMax Duration `json:"reconnect_max"`
	} `json:"streaming"`
}

func parseJSON(jsonFilePath string) (*ClientConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg jsonConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	return &ClientConfig{
		Immer: jsonCfg.Immer,
		Adapter: Adapter{
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
		},
		Storage: jsonCfg.Storage,
		Streaming: Streaming{
			ReconnectMin: time.Duration(jsonCfg.Streaming.ReconnectMin),
			ReconnectMax: time.Duration(jsonCfg.Streaming.ReconnectMax),
		},
	}, nil
}

func (c *ClientConfig) applyDefaults() {
	if c.Streaming.ReconnectMin <= 0 {
		c.Streaming.ReconnectMin = time.Second
	}
	if c.Streaming.ReconnectMax <= 0 {
		c.Streaming.ReconnectMax = 30 * time.Second
	}
}
