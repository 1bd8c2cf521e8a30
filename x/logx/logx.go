// Package logx is the tagged line logger used across the board packages.
// Lines look like "[radio] service created handle=40" and go through the
// builtin println by default, which keeps fmt out of MCU builds.
package logx

import (
	"strconv"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var minLevel atomic.Int32

func init() { minLevel.Store(int32(LevelInfo)) }

// SetLevel drops lines below l.
func SetLevel(l Level) { minLevel.Store(int32(l)) }

// Output receives every emitted line. Tests swap it to capture logs.
var Output = func(line string) { println(line) }

type Logger struct {
	tag string
}

func New(tag string) Logger { return Logger{tag: "[" + tag + "]"} }

func (l Logger) Debug(msg string, kv ...any) { l.emit(LevelDebug, "", msg, kv) }
func (l Logger) Info(msg string, kv ...any)  { l.emit(LevelInfo, "", msg, kv) }
func (l Logger) Warn(msg string, kv ...any)  { l.emit(LevelWarn, "WARN ", msg, kv) }
func (l Logger) Error(msg string, kv ...any) { l.emit(LevelError, "ERROR ", msg, kv) }

func (l Logger) emit(lv Level, prefix, msg string, kv []any) {
	if int32(lv) < minLevel.Load() {
		return
	}
	b := make([]byte, 0, 64)
	b = append(b, l.tag...)
	b = append(b, ' ')
	b = append(b, prefix...)
	b = append(b, msg...)
	for i := 0; i+1 < len(kv); i += 2 {
		b = append(b, ' ')
		if k, ok := kv[i].(string); ok {
			b = append(b, k...)
		} else {
			b = appendValue(b, kv[i])
		}
		b = append(b, '=')
		b = appendValue(b, kv[i+1])
	}
	Output(string(b))
}

func appendValue(b []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		return strconv.AppendQuoteToASCII(b, x)
	case []byte:
		return strconv.AppendQuoteToASCII(b, string(x))
	case int:
		return strconv.AppendInt(b, int64(x), 10)
	case int32:
		return strconv.AppendInt(b, int64(x), 10)
	case int64:
		return strconv.AppendInt(b, x, 10)
	case uint8:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint16:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint32:
		return strconv.AppendUint(b, uint64(x), 10)
	case uint64:
		return strconv.AppendUint(b, x, 10)
	case bool:
		return strconv.AppendBool(b, x)
	case error:
		return append(b, x.Error()...)
	case interface{ String() string }:
		return append(b, x.String()...)
	default:
		return append(b, '?')
	}
}
