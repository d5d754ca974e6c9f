// Package errkind holds the sentinel error kinds from spec.md section 7.
// Call sites wrap one of these with fmt.Errorf("%w: detail", ...) at the
// point a failure is first recognized; callers further up the stack check
// the kind with errors.Is/errors.As rather than matching on message text.
package errkind

import "errors"

var (
	// ErrPermissionDenied: the OS refused to register a global event tap or
	// low-level input hook (spec.md section 7, Capture's startup failure).
	ErrPermissionDenied = errors.New("errkind: permission denied")

	// ErrBindFailed: the Transport listener could not bind its port.
	ErrBindFailed = errors.New("errkind: bind failed")

	// ErrDiscoveryFailed: the mDNS advertise/observe socket could not be
	// opened or broke mid-run.
	ErrDiscoveryFailed = errors.New("errkind: discovery failed")

	// ErrHandshakeRejected: the remote peer's HandshakeResponse carried
	// Accepted=false (includes a message, e.g. encryption mismatch).
	ErrHandshakeRejected = errors.New("errkind: handshake rejected")

	// ErrHandshakeTimeout: no handshake response arrived before the
	// caller's context deadline.
	ErrHandshakeTimeout = errors.New("errkind: handshake timeout")

	// ErrFrameMalformed: a per-frame parse failure; drop the frame, keep
	// the connection.
	ErrFrameMalformed = errors.New("errkind: frame malformed")

	// ErrDecryptFailed: a per-frame AEAD failure; drop the frame, keep the
	// connection.
	ErrDecryptFailed = errors.New("errkind: decrypt failed")

	// ErrSequenceGap: a received InputPacket's sequence number skipped
	// ahead of what was expected. Warning only, the connection survives.
	ErrSequenceGap = errors.New("errkind: sequence gap")

	// ErrSendFailed: a write to a peer's connection failed or there was no
	// live connection to send on.
	ErrSendFailed = errors.New("errkind: send failed")

	// ErrReceiveClosed: a peer's receive stream ended (EOF or a transport-
	// level read error), independent of why the connection closed.
	ErrReceiveClosed = errors.New("errkind: receive closed")

	// ErrPeerSilent: the failsafe timer expired against a stale peer, or
	// the controlling-silence threshold (5s) was exceeded.
	ErrPeerSilent = errors.New("errkind: peer silent")

	// ErrClipboardTooLarge: a clipboard change exceeded the configured
	// size cap and was not broadcast.
	ErrClipboardTooLarge = errors.New("errkind: clipboard content too large")
)
