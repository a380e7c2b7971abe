package wire

import "fmt"

// Framing errors. WrongMagic and Oversize are fatal to the connection;
// BadChecksum, BadPayload, and UnknownCommand are soft: the offending frame
// is dropped and the connection stays open.
var (
	// ErrWrongMagic means the header's magic does not match the configured
	// network. Fatal.
	ErrWrongMagic = fmt.Errorf("wire: wrong magic")

	// ErrOversize means the header's length field exceeds the configured
	// maximum payload size. Fatal.
	ErrOversize = fmt.Errorf("wire: payload exceeds maximum size")

	// ErrBadChecksum means the payload's double-SHA-256 prefix did not match
	// the header's checksum field. Non-fatal: drop the frame.
	ErrBadChecksum = fmt.Errorf("wire: checksum mismatch")
)

// UnknownCommandError is returned when the header names a command this
// engine does not implement. Non-fatal: drop the frame.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("wire: unknown command %q", e.Command)
}

// BadPayloadError wraps a parse failure within an otherwise well-framed
// message. Non-fatal: drop the frame.
type BadPayloadError struct {
	Command string
	Err     error
}

func (e *BadPayloadError) Error() string {
	return fmt.Sprintf("wire: malformed payload for command %q: %v", e.Command, e.Err)
}

func (e *BadPayloadError) Unwrap() error { return e.Err }
