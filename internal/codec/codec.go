package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/mouseshare/mouseshare/internal/errkind"
)

// DefaultMaxFrameBytes is the length-bound violation threshold from spec.md
// section 4.1/5: a frame length header claiming more than this drops the
// connection outright rather than just the frame.
const DefaultMaxFrameBytes = 10 * 1024 * 1024

// gcmNonceSize is fixed by spec.md section 6: "AES-256-GCM, 12-byte nonce".
const gcmNonceSize = 12

var (
	// ErrFrameTooLarge signals the length-bound violation in spec.md
	// section 4.1: "length > configured max -> drop connection." Unlike
	// ErrFrameMalformed and ErrDecryptFailed, the caller must not keep
	// reading from the same connection after this.
	ErrFrameTooLarge = errors.New("codec: frame exceeds configured maximum length")

	// ErrFrameMalformed and ErrDecryptFailed are this package's aliases for
	// the errkind sentinels of the same name (spec.md section 7): a
	// per-frame parse or AEAD failure drops the frame but keeps the
	// connection, unless decryption fails on the very first frame of a
	// connection (the Transport layer is responsible for that distinction).
	ErrFrameMalformed = errkind.ErrFrameMalformed
	ErrDecryptFailed  = errkind.ErrDecryptFailed
)

// Codec frames, serializes, and (optionally) AEAD-seals the two wire message
// types. A Codec instance is tied to one negotiated encryption setting and,
// if enabled, one derived session key; it has no other mutable state, so a
// single Codec can be shared across goroutines reading/writing unrelated
// connections as long as they agree on encryption.
type Codec struct {
	encrypt bool
	aead    cipher.AEAD
}

// New constructs a Codec. If encrypt is true, key must be the 32-byte output
// of DeriveSessionKey.
func New(encrypt bool, key []byte) (*Codec, error) {
	c := &Codec{encrypt: encrypt}
	if !encrypt {
		return c, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	c.aead = aead
	return c, nil
}

// seal wraps plaintext in AEAD-nonce || ciphertext || auth-tag when
// encryption is enabled, and returns plaintext unchanged otherwise (spec.md
// section 4.1: "Sealed blob layout is AEAD-nonce || ciphertext || auth-tag
// concatenated").
func (c *Codec) seal(plaintext []byte) ([]byte, error) {
	if !c.encrypt {
		return plaintext, nil
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("codec: nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

func (c *Codec) open(blob []byte) ([]byte, error) {
	if !c.encrypt {
		return blob, nil
	}
	if len(blob) < gcmNonceSize {
		return nil, ErrDecryptFailed
	}
	nonce, ciphertext := blob[:gcmNonceSize], blob[gcmNonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// EncodeInputPacket serializes and seals an InputPacket into a frame body
// (length prefix is added separately by Frame/WriteFrame).
func (c *Codec) EncodeInputPacket(p InputPacket) ([]byte, error) {
	return c.encodeEnvelope(envelope{Kind: kindPacket, Packet: &p})
}

func (c *Codec) EncodeHandshakeRequest(r HandshakeRequest) ([]byte, error) {
	return c.encodeEnvelope(envelope{Kind: kindHandshakeRequest, HandshakeRequest: &r})
}

func (c *Codec) EncodeHandshakeResponse(r HandshakeResponse) ([]byte, error) {
	return c.encodeEnvelope(envelope{Kind: kindHandshakeResponse, HandshakeResponse: &r})
}

func (c *Codec) encodeEnvelope(e envelope) ([]byte, error) {
	plaintext, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return c.seal(plaintext)
}

// Decoded is the result of parsing a frame body: exactly one of the three
// fields is non-nil, matching which wire message the frame carried.
type Decoded struct {
	Packet            *InputPacket
	HandshakeRequest  *HandshakeRequest
	HandshakeResponse *HandshakeResponse
}

// Decode opens (if encrypted) and parses a frame body. AEAD failures and
// CBOR parse failures are both reported as drop-this-frame errors per
// spec.md section 4.1 (ErrDecryptFailed / ErrFrameMalformed); the connection
// is never torn down by Decode itself.
func (c *Codec) Decode(body []byte) (Decoded, error) {
	plaintext, err := c.open(body)
	if err != nil {
		return Decoded{}, err
	}

	var e envelope
	if err := cbor.Unmarshal(plaintext, &e); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
	}

	switch e.Kind {
	case kindPacket:
		if e.Packet == nil {
			return Decoded{}, ErrFrameMalformed
		}
		return Decoded{Packet: e.Packet}, nil
	case kindHandshakeRequest:
		if e.HandshakeRequest == nil {
			return Decoded{}, ErrFrameMalformed
		}
		return Decoded{HandshakeRequest: e.HandshakeRequest}, nil
	case kindHandshakeResponse:
		if e.HandshakeResponse == nil {
			return Decoded{}, ErrFrameMalformed
		}
		return Decoded{HandshakeResponse: e.HandshakeResponse}, nil
	default:
		return Decoded{}, ErrFrameMalformed
	}
}

// Frame prepends the big-endian u32 length prefix (spec.md section 4.1:
// "Wire frame: big-endian u32 length L, then L bytes of body").
func Frame(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

// WriteFrame frames and writes body to w in one call.
func WriteFrame(w io.Writer, body []byte) error {
	_, err := w.Write(Frame(body))
	return err
}

// ReadFrame reads one length-prefixed frame body from r, enforcing maxLen
// (spec.md section 4.1/5). A maxLen of 0 uses DefaultMaxFrameBytes.
func ReadFrame(r io.Reader, maxLen uint32) ([]byte, error) {
	if maxLen == 0 {
		maxLen = DefaultMaxFrameBytes
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxLen {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
