package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies decode errors.
type ErrorKind int

// Error kinds. Values start at 1 so they can be used as ErrorCode.
const (
	// UnknownMessageType indicates the type tag is not in the type table.
	UnknownMessageType ErrorKind = iota + 1
	// ChecksumMismatch indicates the frame failed integrity check.
	ChecksumMismatch
	// FramingError indicates END was missing where required,
	// or a raw END showed up inside a frame.
	FramingError
	// UnexpectedStart indicates a new frame started before the previous ended.
	UnexpectedStart
	// BufferOverflow indicates a payload larger than the scratch buffer.
	BufferOverflow
)

var (
	// ErrUnknownMessageType matches decode errors of kind UnknownMessageType.
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrChecksumMismatch matches decode errors of kind ChecksumMismatch.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrFraming matches decode errors of kind FramingError.
	ErrFraming = errors.New("framing error")
	// ErrUnexpectedStart matches decode errors of kind UnexpectedStart.
	ErrUnexpectedStart = errors.New("unexpected start")
	// ErrBufferOverflow matches decode errors of kind BufferOverflow.
	ErrBufferOverflow = errors.New("buffer overflow")
)

var kindErrors = [...]error{
	UnknownMessageType: ErrUnknownMessageType,
	ChecksumMismatch:   ErrChecksumMismatch,
	FramingError:       ErrFraming,
	UnexpectedStart:    ErrUnexpectedStart,
	BufferOverflow:     ErrBufferOverflow,
}

// Kinds lists all error kinds.
var Kinds = []ErrorKind{
	UnknownMessageType,
	ChecksumMismatch,
	FramingError,
	UnexpectedStart,
	BufferOverflow,
}

func (k ErrorKind) String() string {
	if k > 0 && int(k) < len(kindErrors) {
		return kindErrors[k].Error()
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// DecodeError is reported by Decoder when a frame is dropped.
type DecodeError struct {
	Kind ErrorKind
	// Type is the message type of the dropped frame, if already known.
	Type byte
	// Byte is the offending byte for FramingError and UnexpectedStart.
	Byte byte
}

// Error implements error.
func (e *DecodeError) Error() string {
	switch e.Kind {
	case UnknownMessageType:
		return fmt.Sprintf("unknown message type 0x%02x", e.Type)
	case ChecksumMismatch:
		return fmt.Sprintf("checksum mismatch (type 0x%02x)", e.Type)
	case FramingError:
		return fmt.Sprintf("framing error: unexpected byte 0x%02x", e.Byte)
	case UnexpectedStart:
		return "unexpected start of frame"
	case BufferOverflow:
		return fmt.Sprintf("buffer overflow (type 0x%02x)", e.Type)
	}
	return e.Kind.String()
}

// Is makes errors.Is match the sentinel of the same kind.
func (e *DecodeError) Is(target error) bool {
	return e.Kind > 0 && int(e.Kind) < len(kindErrors) && kindErrors[e.Kind] == target
}

// KindOf extracts the ErrorKind from a decode error.
func KindOf(err error) (ErrorKind, bool) {
	if de, ok := err.(*DecodeError); ok {
		return de.Kind, true
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
