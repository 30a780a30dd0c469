// Package link runs the panel protocol over a transport.
package link

// Link owns a protocol.Decoder in its Run goroutine and dispatches decoded
// messages in stream order. It sends Heartbeat periodically and tracks the
// peer liveness from inbound Heartbeats, which is wall-clock based and
// therefore kept out of the codec.
//
// Client layers optional Ack/Nack sequencing on top of Link: the host
// numbers commands in send order and the peer replies with the number of
// the command it accepted or rejected.
