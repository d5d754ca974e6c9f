// Package codec frames, serializes, and optionally encrypts the wire
// messages exchanged between peers: InputPacket and the Handshake pair
// (spec.md section 4.1). Serialization uses CBOR (github.com/fxamacker/cbor)
// for its tagged, self-describing field encoding; framing is a raw
// big-endian u32 length prefix, mirroring the teacher's
// internal/protocol/udp.go header-plus-payload layout generalized from a
// fixed 13-byte header to a length-prefixed one since CBOR bodies vary in
// size per event type.
package codec

import "time"

// EventKind tags which InputEvent variant a wire-level Event carries. The
// in-memory type (below) makes illegal states unrepresentable by construction
// functions; EventKind exists only because CBOR needs a discriminant to
// decode into the right Go type on the wire (spec.md section 9's "Design
// Notes": the wire encoding may still be a flat tagged record).
type EventKind uint8

const (
	EventMouseMove EventKind = iota
	EventMouseDown
	EventMouseUp
	EventMouseDrag
	EventScroll
	EventKeyDown
	EventKeyUp
	EventFlagsChanged
	EventClipboardUpdate
	EventScreenEnter
	EventScreenLeave
	EventScreenEnterAck
	EventHeartbeat
)

// Modifiers is a bitmask of currently-held modifier keys, carried alongside
// most input events.
type Modifiers uint16

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModMeta
)

// Button identifies a mouse button.
type Button uint8

const (
	ButtonLeft Button = iota + 1
	ButtonRight
	ButtonMiddle
)

// Event is the tagged sum of InputEvent variants from spec.md section 3.
// Exactly one of the per-kind payload structs is meaningful, selected by
// Kind; the constructors below are the only supported way to build one, so
// a caller can never populate, say, KeyDown fields on a MouseMove event.
type Event struct {
	Kind      EventKind
	TimestampUS int64 // microsecond timestamp

	MouseMove       MouseMoveData       `cbor:"1,omitempty"`
	MouseButton     MouseButtonData     `cbor:"2,omitempty"`
	Scroll          ScrollData          `cbor:"3,omitempty"`
	Key             KeyData             `cbor:"4,omitempty"`
	FlagsChanged    FlagsChangedData    `cbor:"5,omitempty"`
	ClipboardUpdate ClipboardUpdateData `cbor:"6,omitempty"`
	ScreenEnter     ScreenEnterData     `cbor:"7,omitempty"`
	ScreenLeave     ScreenLeaveData     `cbor:"8,omitempty"`
	ScreenEnterAck  ScreenEnterAckData  `cbor:"9,omitempty"`
}

// MouseMoveData / MouseDragData: deltas only, never absolute coordinates
// (spec.md section 3 invariant — a different screen's geometry makes an
// absolute position meaningless on the receiving side).
type MouseMoveData struct {
	DX, DY    float64
	Modifiers Modifiers
}

type MouseButtonData struct {
	Button     Button
	ClickCount int
	Modifiers  Modifiers
	// DragDX/DragDY are populated only when this button event is a Drag
	// variant (mouse moved with a button held); zero for plain Down/Up.
	IsDrag bool
	DragDX float64
	DragDY float64
}

type ScrollData struct {
	DX, DY float64
}

type KeyData struct {
	Code      uint16
	Chars     string
	Modifiers Modifiers
	Pressed   bool
}

type FlagsChangedData struct {
	Modifiers Modifiers
}

type ClipboardUpdateData struct {
	Blob    []byte
	MimeTag string
}

type ScreenEnterData struct {
	Edge       uint8 // arrangement.Edge, decoupled here to avoid an import cycle
	RelEntryX  float64
	RelEntryY  float64
}

type ScreenLeaveData struct {
	Edge uint8
}

type ScreenEnterAckData struct {
	Edge uint8
}

func now() int64 { return time.Now().UnixMicro() }

func NewMouseMove(dx, dy float64, mods Modifiers) Event {
	return Event{Kind: EventMouseMove, TimestampUS: now(), MouseMove: MouseMoveData{DX: dx, DY: dy, Modifiers: mods}}
}

func NewMouseDown(btn Button, clickCount int, mods Modifiers) Event {
	return Event{Kind: EventMouseDown, TimestampUS: now(), MouseButton: MouseButtonData{Button: btn, ClickCount: clickCount, Modifiers: mods}}
}

func NewMouseUp(btn Button, clickCount int, mods Modifiers) Event {
	return Event{Kind: EventMouseUp, TimestampUS: now(), MouseButton: MouseButtonData{Button: btn, ClickCount: clickCount, Modifiers: mods}}
}

func NewMouseDrag(btn Button, dx, dy float64, mods Modifiers) Event {
	return Event{Kind: EventMouseDrag, TimestampUS: now(), MouseButton: MouseButtonData{Button: btn, IsDrag: true, DragDX: dx, DragDY: dy, Modifiers: mods}}
}

func NewScroll(dx, dy float64) Event {
	return Event{Kind: EventScroll, TimestampUS: now(), Scroll: ScrollData{DX: dx, DY: dy}}
}

func NewKeyDown(code uint16, chars string, mods Modifiers) Event {
	return Event{Kind: EventKeyDown, TimestampUS: now(), Key: KeyData{Code: code, Chars: chars, Modifiers: mods, Pressed: true}}
}

func NewKeyUp(code uint16, mods Modifiers) Event {
	return Event{Kind: EventKeyUp, TimestampUS: now(), Key: KeyData{Code: code, Modifiers: mods, Pressed: false}}
}

func NewFlagsChanged(mods Modifiers) Event {
	return Event{Kind: EventFlagsChanged, TimestampUS: now(), FlagsChanged: FlagsChangedData{Modifiers: mods}}
}

func NewClipboardUpdate(blob []byte, mimeTag string) Event {
	return Event{Kind: EventClipboardUpdate, TimestampUS: now(), ClipboardUpdate: ClipboardUpdateData{Blob: blob, MimeTag: mimeTag}}
}

func NewScreenEnter(edge uint8, relX, relY float64) Event {
	return Event{Kind: EventScreenEnter, TimestampUS: now(), ScreenEnter: ScreenEnterData{Edge: edge, RelEntryX: relX, RelEntryY: relY}}
}

func NewScreenLeave(edge uint8) Event {
	return Event{Kind: EventScreenLeave, TimestampUS: now(), ScreenLeave: ScreenLeaveData{Edge: edge}}
}

func NewScreenEnterAck(edge uint8) Event {
	return Event{Kind: EventScreenEnterAck, TimestampUS: now(), ScreenEnterAck: ScreenEnterAckData{Edge: edge}}
}

func NewHeartbeat() Event {
	return Event{Kind: EventHeartbeat, TimestampUS: now()}
}

// IsMeta reports whether this event is in the meta-set the Controller never
// forwards to Injection while Controlled (spec.md section 4.7): ScreenEnter,
// ScreenEnterAck, ScreenLeave, Heartbeat, ClipboardUpdate.
func (e Event) IsMeta() bool {
	switch e.Kind {
	case EventScreenEnter, EventScreenEnterAck, EventScreenLeave, EventHeartbeat, EventClipboardUpdate:
		return true
	default:
		return false
	}
}
