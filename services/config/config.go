// Package config publishes the embedded per-device configuration. Every
// top-level key of the device's JSON object becomes a retained message on
// config/<key> whose payload is the raw JSON of the value.
package config

import (
	"context"
	"encoding/json"

	"devkit-go/bus"
	"devkit-go/errcode"
	"devkit-go/x/logx"
)

var log = logx.New("config")

const configPrefix = "config"

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type Service struct {
	device string
}

func New(device string) *Service {
	return &Service{device: device}
}

// Publish reads the device config and publishes it, one retained message
// per key.
func (s *Service) Publish(conn *bus.Connection) error {
	raw, ok := EmbeddedConfigLookup(s.device)
	if !ok || len(raw) == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "no embedded config for " + s.device}
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "not a JSON object", Err: err}
	}
	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), []byte(v), true))
	}
	log.Info("published", "device", s.device, "keys", len(m))
	return nil
}

// Start publishes in the background; failures are logged.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.Publish(conn); err != nil {
			log.Error("publish failed", "err", err)
		}
	}()
}
