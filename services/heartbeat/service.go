// Package heartbeat publishes a liveness tick with the uptime.
package heartbeat

import (
	"context"
	"encoding/json"
	"time"

	"devkit-go/bus"
	"devkit-go/x/logx"
)

var log = logx.New("heartbeat")

var (
	TopicBeat   = bus.T("kit", "heartbeat")
	TopicConfig = bus.T("config", "heartbeat")
)

const DefaultInterval = time.Second

// Config arrives on TopicConfig, usually retained. The JSON form is
// {"interval_ms": n}.
type Config struct {
	Interval time.Duration
}

func decodeConfig(p any) (Config, bool) {
	switch v := p.(type) {
	case Config:
		return v, v.Interval > 0
	case []byte:
		var raw struct {
			IntervalMs int64 `json:"interval_ms"`
		}
		if json.Unmarshal(v, &raw) != nil || raw.IntervalMs <= 0 {
			return Config{}, false
		}
		return Config{Interval: time.Duration(raw.IntervalMs) * time.Millisecond}, true
	}
	return Config{}, false
}

type Beat struct {
	Seq    uint32
	Uptime time.Duration
}

type Service struct {
	interval time.Duration
	started  time.Time
}

func New(interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{interval: interval}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(TopicConfig)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	var seq uint32
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return
		case <-tick.C:
			seq++
			conn.Publish(conn.NewMessage(TopicBeat, Beat{Seq: seq, Uptime: time.Since(s.started)}, false))
		case msg := <-cfgSub.Channel():
			cfg, ok := decodeConfig(msg.Payload)
			if !ok {
				log.Warn("bad config ignored")
				continue
			}
			s.interval = cfg.Interval
			tick.Reset(cfg.Interval)
			log.Info("interval set", "ms", cfg.Interval.Milliseconds())
		}
	}
}

// Start runs the service until ctx is done.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	s.started = time.Now()
	go s.serviceLoop(ctx, conn)
}
