package protocol

// Result is what Decoder produces for a completed or dropped frame.
// An Err from Parse or FeedFunc is owned by the Decoder and overwritten
// by the next dropped frame, copy it to keep it. Feed returns copies.
type Result struct {
	Msg Message
	Err error
}

// Ready indicates the Result carries a message or an error.
func (r Result) Ready() bool {
	return r.Msg != nil || r.Err != nil
}

type parseState int

const (
	stateIdle     parseState = iota // waiting for START
	stateType                       // waiting for message type
	statePayload                    // waiting for payload bytes
	stateChecksum                   // waiting for checksum
	stateEnd                        // waiting for END
)

// Decoder parses a byte stream into messages.
// The zero value is ready to use. A Decoder is not safe for concurrent use.
type Decoder struct {
	state     parseState
	escaped   bool
	msgType   byte
	payload   [MaxPayloadLen]byte
	recvLen   int
	remaining int
	crc       byte
	checksum  byte
	err       DecodeError

	// lengths overrides the payload length table, only for tests.
	lengths func(byte) int
}

// Reset drops any frame in progress.
func (d *Decoder) Reset() {
	d.state, d.escaped = stateIdle, false
	d.recvLen, d.remaining = 0, 0
}

// Pending indicates a frame is partially received.
func (d *Decoder) Pending() bool {
	return d.state != stateIdle
}

// Parse consumes one byte.
func (d *Decoder) Parse(b byte) Result {
	if d.state == stateIdle {
		if b == StartByte {
			d.begin()
		}
		return Result{}
	}
	if d.state == stateEnd {
		if b == EndByte {
			return d.complete()
		}
		r := d.fail(FramingError, d.msgType, b)
		if b == StartByte {
			d.begin()
		}
		return r
	}
	if d.escaped {
		d.escaped = false
		return d.consume(b ^ EscapeMask)
	}
	switch b {
	case StartByte:
		var tag byte
		if d.state != stateType {
			tag = d.msgType
		}
		r := d.fail(UnexpectedStart, tag, b)
		d.begin()
		return r
	case EndByte:
		return d.fail(FramingError, d.msgType, b)
	case EscapeByte:
		d.escaped = true
		return Result{}
	}
	return d.consume(b)
}

// FeedFunc parses p and calls fn for every ready Result in stream order.
func (d *Decoder) FeedFunc(p []byte, fn func(Result)) {
	for _, b := range p {
		if r := d.Parse(b); r.Ready() {
			fn(r)
		}
	}
}

// Feed parses p and returns the ready Results in stream order.
func (d *Decoder) Feed(p []byte) (results []Result) {
	d.FeedFunc(p, func(r Result) {
		if de, ok := r.Err.(*DecodeError); ok {
			c := *de
			r.Err = &c
		}
		results = append(results, r)
	})
	return
}

func (d *Decoder) consume(b byte) Result {
	switch d.state {
	case stateType:
		n, ok := d.payloadLen(b)
		if !ok {
			return d.fail(UnknownMessageType, b, 0)
		}
		d.msgType = b
		if n > len(d.payload) {
			return d.fail(BufferOverflow, b, 0)
		}
		d.crc = crcUpdate(0, b)
		d.recvLen, d.remaining = 0, n
		if n == 0 {
			d.state = stateChecksum
		} else {
			d.state = statePayload
		}
	case statePayload:
		d.payload[d.recvLen] = b
		d.recvLen++
		d.remaining--
		d.crc = crcUpdate(d.crc, b)
		if d.remaining == 0 {
			d.state = stateChecksum
		}
	case stateChecksum:
		d.checksum = b
		d.state = stateEnd
	}
	return Result{}
}

func (d *Decoder) payloadLen(tag byte) (int, bool) {
	if d.lengths != nil {
		return d.lengths(tag), true
	}
	return int(payloadLens[tag]), knownTypes[tag]
}

func (d *Decoder) begin() {
	d.Reset()
	d.state = stateType
	d.msgType = 0
}

func (d *Decoder) fail(kind ErrorKind, tag, b byte) Result {
	d.Reset()
	d.err = DecodeError{Kind: kind, Type: tag, Byte: b}
	return Result{Err: &d.err}
}

func (d *Decoder) complete() Result {
	if d.checksum != d.crc {
		return d.fail(ChecksumMismatch, d.msgType, 0)
	}
	msg, err := Unmarshal(d.msgType, d.payload[:d.recvLen])
	d.Reset()
	return Result{Msg: msg, Err: err}
}
