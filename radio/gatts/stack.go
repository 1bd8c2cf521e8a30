package gatts

// Service declares a GATT service. NumHandles reserves attribute slots for
// the declaration, its characteristics and descriptors.
type Service struct {
	UUID       UUID
	Primary    bool
	NumHandles uint16
	InstID     uint8
}

type Characteristic struct {
	UUID    UUID
	Perm    Perm
	Prop    Prop
	Value   []byte
	MaxLen  uint16
	AutoRsp AutoRsp
}

type Descriptor struct {
	UUID UUID
	Perm Perm
}

// AdvFlag is the AD flags field.
type AdvFlag uint8

const (
	FlagLimitedDisc     AdvFlag = 1 << 0
	FlagGenDisc         AdvFlag = 1 << 1
	FlagBREDRNotSupport AdvFlag = 1 << 2
)

// AdvertiseData describes one advertising or scan-response payload.
// Intervals are in 1.25 ms units (connection interval preference).
type AdvertiseData struct {
	SetScanRsp     bool
	IncludeName    bool
	IncludeTxPower bool
	MinInterval    uint16
	MaxInterval    uint16
	Appearance     uint16
	Manufacturer   []byte
	ServiceData    []byte
	ServiceUUID    *UUID
	Flags          AdvFlag
}

// Response is the value sent back for a read or write request.
type Response struct {
	Attr   AttrHandle
	Offset uint16
	Value  []byte
}

// Stack is the vendor GATT server API. Calls return once the request is
// queued; the outcome arrives later as an Event on the handler given to
// SetEventHandler.
type Stack interface {
	// Enable powers the controller and sets the advertised device name.
	Enable(name string) error
	SetEventHandler(h EventHandler)

	RegisterApp(appID uint16) error                              // -> RegisterEvent
	CreateService(iface Interface, svc Service) error            // -> CreateEvent
	StartService(svc ServiceHandle) error                        // -> StartEvent
	AddCharacteristic(svc ServiceHandle, c Characteristic) error // -> AddCharEvent
	AddDescriptor(svc ServiceHandle, d Descriptor) error         // -> AddDescrEvent
	AttrValue(attr AttrHandle) ([]byte, error)                   // synchronous
	SendResponse(iface Interface, conn ConnID, trans TransID, st Status, rsp Response) error
	ConfigAdvertising(d AdvertiseData) error // -> AdvConfigEvent
	StartAdvertising() error                 // -> AdvStartEvent
}
