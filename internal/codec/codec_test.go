package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTripUnencrypted(t *testing.T) {
	c, err := New(false, nil)
	if err != nil {
		t.Fatal(err)
	}

	p := NewInputPacket(1, []Event{NewMouseMove(3, -4, ModShift)})
	body, err := c.EncodeInputPacket(p)
	if err != nil {
		t.Fatal(err)
	}

	framed := Frame(body)
	readBack, err := ReadFrame(bytes.NewReader(framed), 0)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := c.Decode(readBack)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Packet == nil {
		t.Fatal("expected a packet")
	}
	if decoded.Packet.SequenceNumber != 1 {
		t.Errorf("sequence number not preserved: got %d", decoded.Packet.SequenceNumber)
	}
	if len(decoded.Packet.Events) != 1 || decoded.Packet.Events[0].Kind != EventMouseMove {
		t.Fatalf("event not preserved: %+v", decoded.Packet.Events)
	}
	if decoded.Packet.Events[0].MouseMove.DX != 3 || decoded.Packet.Events[0].MouseMove.DY != -4 {
		t.Errorf("deltas not preserved: %+v", decoded.Packet.Events[0].MouseMove)
	}
}

func TestFrameRoundTripEncrypted(t *testing.T) {
	key, err := DeriveSessionKey("correct-horse-battery-staple")
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(true, key)
	if err != nil {
		t.Fatal(err)
	}

	p := NewInputPacket(42, []Event{NewKeyDown(0x41, "a", 0)})
	body, err := c.EncodeInputPacket(p)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := c.Decode(body)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Packet.SequenceNumber != 42 {
		t.Errorf("got seq %d", decoded.Packet.SequenceNumber)
	}
}

func TestMismatchedKeysFailDecryptSurvivesStream(t *testing.T) {
	keyA, _ := DeriveSessionKey("password-a")
	keyB, _ := DeriveSessionKey("password-b")

	sender, err := New(true, keyA)
	if err != nil {
		t.Fatal(err)
	}
	receiver, err := New(true, keyB)
	if err != nil {
		t.Fatal(err)
	}

	body, err := sender.EncodeInputPacket(NewInputPacket(1, nil))
	if err != nil {
		t.Fatal(err)
	}

	_, err = receiver.Decode(body)
	if !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}

	// The stream survives: a subsequent frame under the correct key still
	// decodes fine on a codec instance configured with keyA.
	body2, err := sender.EncodeInputPacket(NewInputPacket(2, nil))
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := sender.Decode(body2)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Packet.SequenceNumber != 2 {
		t.Errorf("got %d", decoded.Packet.SequenceNumber)
	}
}

func TestMalformedFrameDropped(t *testing.T) {
	c, err := New(false, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Decode([]byte{0xff, 0xff, 0xff})
	if !errors.Is(err, ErrFrameMalformed) {
		t.Fatalf("expected ErrFrameMalformed, got %v", err)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	// Claim a huge length without providing the bytes.
	buf.Write([]byte{0x7f, 0xff, 0xff, 0xff})
	_, err := ReadFrame(&buf, 1024)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	c, err := New(false, nil)
	if err != nil {
		t.Fatal(err)
	}
	req := HandshakeRequest{Version: ProtocolVersion, PeerID: "abc", PeerName: "host-a", ScreenW: 1920, ScreenH: 1080}
	body, err := c.EncodeHandshakeRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := c.Decode(body)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.HandshakeRequest == nil || decoded.HandshakeRequest.PeerName != "host-a" {
		t.Fatalf("got %+v", decoded.HandshakeRequest)
	}
}
