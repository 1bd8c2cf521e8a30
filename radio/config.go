package radio

// Observer receives the payload of every plain write. A reply is sent back
// when ok is true and the peer asked for a response.
type Observer func(msg []byte) (reply string, ok bool)

// Config is the state shared between the application and the radio
// callbacks: the write observer and the outgoing command stack.
type Config struct {
	onReceive Observer
	commands  []string
}

func NewConfig() Config { return Config{} }

// OnReceive returns a copy of c with f as the write observer.
func (c Config) OnReceive(f Observer) Config {
	c.onReceive = f
	return c
}

func (c *Config) send(cmd string) { c.commands = append(c.commands, cmd) }

// nextCommand pops the most recently queued command.
func (c *Config) nextCommand() (string, bool) {
	n := len(c.commands)
	if n == 0 {
		return "", false
	}
	cmd := c.commands[n-1]
	c.commands[n-1] = ""
	c.commands = c.commands[:n-1]
	return cmd, true
}
