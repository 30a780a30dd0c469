// Package protocol provides the panel wire protocol.
package protocol

// The panel protocol is communicated between the panel firmware and the
// host over a byte stream (USB-CDC) which neither preserves message
// boundaries nor guarantees integrity.
//
// Frame layout:
//
//	START | TYPE | PAYLOAD (fixed length per TYPE) | CHECKSUM | END
//
// TYPE, PAYLOAD and CHECKSUM are byte-stuffed: a byte equal to START, END
// or ESCAPE is sent as ESCAPE followed by the byte XOR EscapeMask.
// CHECKSUM is CRC-8 over the un-escaped TYPE and PAYLOAD.
//
// Encoding is stateless. Decoder keeps only the frame in progress in a
// fixed buffer and always resynchronizes on errors, so no error is fatal.
//
// Producer: panel firmware (reports), host (commands)
// Consumer: host (reports), panel firmware (commands)
