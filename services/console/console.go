// Package console serves a line shell on a serial port. Each line is split
// shell-style, turned into a kit request and answered with one line:
// "ok", "ok <value>" or "err <reason>".
package console

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"devkit-go/bus"
	"devkit-go/errcode"
	"devkit-go/services/kit"
	"devkit-go/x/logx"
	"devkit-go/x/timex"

	"github.com/google/shlex"
)

var log = logx.New("console")

var (
	TopicConfig = bus.T("config", "console") // retained Config or its JSON
	TopicState  = bus.T("console", "state")  // retained State
)

const (
	maxLine        = 128
	requestTimeout = kit.MaxFade + time.Second
)

// Port is the serial line the console talks over; *port.PortC is one.
type Port interface {
	Write(p []byte) (int, error)
	ReadLine(ctx context.Context, buf []byte) (int, error)
}

type Config struct {
	Echo   bool   `json:"echo"`
	Prompt string `json:"prompt"`
}

var DefaultConfig = Config{Prompt: "> "}

type State struct {
	Level  string // "up", "degraded", "error" or "idle"
	Status string
	Error  string
	TSms   int64
}

type Service struct {
	conn *bus.Connection
	port Port
	cfg  Config
}

func New(conn *bus.Connection, port Port) *Service {
	return &Service{conn: conn, port: port, cfg: DefaultConfig}
}

// Run serves lines until ctx is done. A config published on TopicConfig
// applies from the next line.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(TopicConfig)
	defer s.conn.Unsubscribe(cfgSub)
	select {
	case msg := <-cfgSub.Channel():
		s.applyConfig(msg)
	default:
	}

	lines := make(chan string)
	go s.readLoop(ctx, lines)

	s.publishState("up", "ready", nil)
	s.prompt()
	for {
		select {
		case <-ctx.Done():
			s.publishState("idle", "stopped", nil)
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			s.applyConfig(msg)
		case line := <-lines:
			if s.cfg.Echo {
				s.writeLine(line)
			}
			s.writeLine(s.Exec(ctx, line))
			s.prompt()
		}
	}
}

func (s *Service) applyConfig(msg *bus.Message) {
	cfg, err := decodeConfig(msg.Payload)
	if err != nil {
		s.publishState("error", "config_decode_failed", err)
		return
	}
	s.cfg = cfg
}

func (s *Service) readLoop(ctx context.Context, out chan<- string) {
	buf := make([]byte, maxLine)
	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		n, err := s.port.ReadLine(ctx, buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			delay := backoff()
			log.Warn("read failed", "err", err, "retry", delay)
			s.publishState("degraded", "read_failed_retrying", err)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		backoff = backoffSeq(250*time.Millisecond, 5*time.Second)
		line := strings.TrimSpace(string(buf[:n]))
		if line == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return
		}
	}
}

// Exec runs one command line and returns the answer line.
func (s *Service) Exec(ctx context.Context, line string) string {
	args, err := shlex.Split(line)
	if err != nil {
		return "err " + err.Error()
	}
	if len(args) == 0 {
		return "err empty"
	}
	if args[0] == "help" {
		return "ok " + usage()
	}
	c, ok := lookup(args[0])
	if !ok {
		return "err unknown command " + args[0]
	}
	if len(args)-1 < c.min {
		return "err usage: " + c.usage
	}
	v, err := c.run(ctx, s, args[1:])
	if err != nil {
		return "err " + err.Error()
	}
	if v == "" {
		return "ok"
	}
	return "ok " + v
}

// request sends a kit request and unwraps its reply.
func (s *Service) request(ctx context.Context, topic bus.Topic, payload any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	m, err := s.conn.RequestWait(ctx, s.conn.NewMessage(topic, payload, false))
	if err != nil {
		return nil, err
	}
	r, ok := m.Payload.(kit.Reply)
	if !ok {
		return nil, errcode.Error
	}
	if !r.OK {
		return nil, errors.New(r.Error)
	}
	return r.Value, nil
}

// retained returns the retained payload of topic, if any.
func (s *Service) retained(topic bus.Topic) (any, bool) {
	sub := s.conn.Subscribe(topic)
	defer s.conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return m.Payload, true
	default:
		return nil, false
	}
}

func (s *Service) prompt() {
	if s.cfg.Prompt != "" {
		s.write(s.cfg.Prompt)
	}
}

func (s *Service) writeLine(line string) { s.write(line + "\n") }

func (s *Service) write(text string) {
	if _, err := s.port.Write([]byte(text)); err != nil {
		log.Warn("write failed", "err", err)
	}
}

func (s *Service) publishState(level, status string, err error) {
	st := State{Level: level, Status: status, TSms: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(TopicState, st, true))
}

func decodeConfig(p any) (Config, error) {
	cfg := DefaultConfig
	switch v := p.(type) {
	case Config:
		return v, nil
	case []byte:
		err := json.Unmarshal(v, &cfg)
		return cfg, err
	case string:
		err := json.Unmarshal([]byte(v), &cfg)
		return cfg, err
	}
	return cfg, errcode.InvalidParams
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
