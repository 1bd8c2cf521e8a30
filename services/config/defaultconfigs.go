package config

// DefaultDevice names the configuration the firmware boots with.
const DefaultDevice = "m5go"

const cfgM5Go = `{
  "heartbeat": {
      "interval_ms": 5000
  },
  "console": {
      "echo": true,
      "prompt": "m5> "
  }
}`

var embeddedConfigs = map[string][]byte{
	DefaultDevice: []byte(cfgM5Go),
}
