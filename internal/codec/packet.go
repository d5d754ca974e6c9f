package codec

// ProtocolVersion is the only version this Codec speaks (spec.md section 6:
// "InputPacket.version = 1").
const ProtocolVersion = 1

// InputPacket is the framed, sequenced envelope for a batch of InputEvents
// (spec.md section 3). SequenceNumber is a per-sender monotonic u32
// starting at 1 for the first packet sent in a session.
type InputPacket struct {
	Version        uint8
	SequenceNumber uint32
	Events         []Event
}

func NewInputPacket(seq uint32, events []Event) InputPacket {
	return InputPacket{Version: ProtocolVersion, SequenceNumber: seq, Events: events}
}

// HandshakeRequest is sent by the connection initiator immediately after
// the TCP connection opens (spec.md section 4.3 step 1).
type HandshakeRequest struct {
	Version           uint8
	PeerID            string // canonical UUID string
	PeerName          string
	ScreenW, ScreenH  int
	EncryptionEnabled bool
	TimestampUS       int64
}

// HandshakeResponse is the acceptor's reply. ErrorMessage is populated only
// when Accepted is false (spec.md section 9, Open Questions: mismatched
// encryption flag -> accepted=false, errorMessage="encryption-mismatch").
type HandshakeResponse struct {
	Accepted         bool
	PeerID           string
	PeerName         string
	ScreenW, ScreenH int
	ErrorMessage     string
}

// envelope is the CBOR-level container that lets a single frame carry either
// message type with a stable tag, since CBOR itself does not discriminate
// Go struct types on decode. Kind 0/1/2 maps to InputPacket,
// HandshakeRequest, HandshakeResponse respectively.
type envelope struct {
	Kind              uint8
	Packet            *InputPacket       `cbor:"1,omitempty"`
	HandshakeRequest  *HandshakeRequest  `cbor:"2,omitempty"`
	HandshakeResponse *HandshakeResponse `cbor:"3,omitempty"`
}

const (
	kindPacket            uint8 = 0
	kindHandshakeRequest  uint8 = 1
	kindHandshakeResponse uint8 = 2
)
