package gatts

// Kind identifies an event type for routing.
type Kind uint8

const (
	KindRegister Kind = iota + 1
	KindConnect
	KindCreate
	KindStart
	KindAddChar
	KindAddDescr
	KindRead
	KindWrite
	KindAdvConfig
	KindAdvStart
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindConnect:
		return "connect"
	case KindCreate:
		return "create"
	case KindStart:
		return "start"
	case KindAddChar:
		return "add_char"
	case KindAddDescr:
		return "add_descr"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindAdvConfig:
		return "adv_config"
	case KindAdvStart:
		return "adv_start"
	}
	return "unknown"
}

// Event is anything the stack delivers through the EventHandler.
type Event interface {
	Kind() Kind
}

type RegisterEvent struct {
	Status Status
	AppID  uint16
	Iface  Interface
}

type ConnectEvent struct {
	Conn      ConnID
	Addr      [6]byte
	Connected bool
}

type CreateEvent struct {
	Status  Status
	Service ServiceHandle
	UUID    UUID
}

type StartEvent struct {
	Status  Status
	Service ServiceHandle
}

type AddCharEvent struct {
	Status  Status
	Service ServiceHandle
	Attr    AttrHandle
	UUID    UUID
}

type AddDescrEvent struct {
	Status  Status
	Service ServiceHandle
	Attr    AttrHandle
	UUID    UUID
}

type ReadEvent struct {
	Conn    ConnID
	Trans   TransID
	Attr    AttrHandle
	Offset  uint16
	IsLong  bool
	NeedRsp bool
}

type WriteEvent struct {
	Conn    ConnID
	Trans   TransID
	Attr    AttrHandle
	Offset  uint16
	NeedRsp bool
	IsPrep  bool
	Value   []byte
}

type AdvConfigEvent struct {
	Status  Status
	ScanRsp bool
}

type AdvStartEvent struct {
	Status Status
}

func (RegisterEvent) Kind() Kind  { return KindRegister }
func (ConnectEvent) Kind() Kind   { return KindConnect }
func (CreateEvent) Kind() Kind    { return KindCreate }
func (StartEvent) Kind() Kind     { return KindStart }
func (AddCharEvent) Kind() Kind   { return KindAddChar }
func (AddDescrEvent) Kind() Kind  { return KindAddDescr }
func (ReadEvent) Kind() Kind      { return KindRead }
func (WriteEvent) Kind() Kind     { return KindWrite }
func (AdvConfigEvent) Kind() Kind { return KindAdvConfig }
func (AdvStartEvent) Kind() Kind  { return KindAdvStart }

// EventHandler is the single dispatch path of a Stack. It runs on the
// stack's callback context and must not block for long.
type EventHandler func(iface Interface, ev Event)

// ReadHandler answers a read on one attribute.
type ReadHandler interface {
	OnRead(ev ReadEvent) []byte
}

// WriteHandler consumes a write on one attribute. When respond is true the
// dispatcher sends rsp back with StatusOK.
type WriteHandler interface {
	OnWrite(ev WriteEvent) (rsp []byte, respond bool)
}

type ReadFunc func(ev ReadEvent) []byte

func (f ReadFunc) OnRead(ev ReadEvent) []byte { return f(ev) }

type WriteFunc func(ev WriteEvent) ([]byte, bool)

func (f WriteFunc) OnWrite(ev WriteEvent) ([]byte, bool) { return f(ev) }
