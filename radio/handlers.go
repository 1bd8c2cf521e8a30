package radio

import (
	"devkit-go/radio/gatts"
	"devkit-go/x/guard"
)

// Fallback is what a read returns when no command can be popped, either
// because the queue is empty or because the config is busy.
const Fallback = "NONE"

// commandReader answers characteristic reads with the newest queued command.
type commandReader struct {
	cfg *guard.Guarded[Config]
}

func (h commandReader) OnRead(ev gatts.ReadEvent) []byte {
	cmd, ok := guard.TryWith(h.cfg, func(c *Config) string {
		if s, ok := c.nextCommand(); ok {
			return s
		}
		return Fallback
	})
	if !ok {
		log.Debug("config busy on read", "conn", ev.Conn)
		cmd = Fallback
	}
	return []byte(cmd)
}

// messageWriter hands plain writes to the observer. Prepared writes are not
// supported and get no response.
type messageWriter struct {
	cfg *guard.Guarded[Config]
}

func (h messageWriter) OnWrite(ev gatts.WriteEvent) ([]byte, bool) {
	if ev.IsPrep {
		log.Warn("unsupported write", "attr", ev.Attr, "conn", ev.Conn)
		return nil, false
	}
	var reply string
	if !h.cfg.TryDo(func(c *Config) {
		if c.onReceive == nil {
			return
		}
		if s, ok := c.onReceive(ev.Value); ok {
			reply = s
		}
	}) {
		log.Debug("config busy on write", "conn", ev.Conn)
	}
	log.Info("write received", "attr", ev.Attr, "value", ev.Value)

	if !ev.NeedRsp {
		return nil, false
	}
	log.Info("sending response", "value", reply)
	return []byte(reply), true
}
