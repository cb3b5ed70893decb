// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker

// Package soi2c implements a half-duplex, chunked request/response
// transaction over an I2C-like link: a request is transmitted in
// 250-byte chunks, then a response is polled for in a loop that grows
// the receive buffer as needed until a newline terminator is seen or
// a 5-second budget expires.
package soi2c

import (
	"bytes"
	"fmt"
)

// DefaultAddress is the I2C address a zero-valued Context.Addr is
// defaulted to: the Notecard's fixed address.
const DefaultAddress uint16 = 0x17

// Status is the outcome of a Transaction. It is returned directly by
// this package's Go API rather than wrapped in an error, matching the
// original C status-code convention; callers composing higher-level
// clients (see package notecard) are expected to convert it to an
// error at their own boundary.
type Status int

const (
	StatusOK                Status = 0
	StatusConfig            Status = 1
	StatusTerminator        Status = 2
	StatusTXBufferOverflow  Status = 3
	StatusRXBufferOverflow  Status = 4
	StatusIOTransmit        Status = 5
	StatusIOReceive         Status = 6
	StatusIOTimeout         Status = 7
	StatusIOBadSizeReturned Status = 8
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusConfig:
		return "CONFIG"
	case StatusTerminator:
		return "TERMINATOR"
	case StatusTXBufferOverflow:
		return "TX_BUFFER_OVERFLOW"
	case StatusRXBufferOverflow:
		return "RX_BUFFER_OVERFLOW"
	case StatusIOTransmit:
		return "IO_TRANSMIT"
	case StatusIOReceive:
		return "IO_RECEIVE"
	case StatusIOTimeout:
		return "IO_TIMEOUT"
	case StatusIOBadSizeReturned:
		return "IO_BAD_SIZE_RETURNED"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Err converts a Status to a Go error, or nil for StatusOK.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	return fmt.Errorf("soi2c: %s", s)
}

// Flags modify Transaction's behavior.
type Flags int

const (
	// NoResponse means the request is a fire-and-forget command; the
	// transaction returns as soon as the request is fully transmitted.
	NoResponse Flags = 1 << iota
	// IgnoreResponse still waits for and drains a response, but
	// discards it rather than compacting it into the caller's buffer.
	IgnoreResponse
)

// TransmitFn writes exactly len(buf) bytes to addr, returning an error
// on any I/O failure.
type TransmitFn func(addr uint16, buf []byte) error

// ReceiveFn reads exactly len(buf) bytes from addr into buf, returning
// an error on any I/O failure.
type ReceiveFn func(addr uint16, buf []byte) error

// DelayFn pauses for the given number of milliseconds. Every
// Transaction's timing is expressed through this callback so tests can
// supply an instant (non-sleeping) implementation.
type DelayFn func(ms int)

// GrowFn is called mid-receive when the response buffer needs more
// room than its current length. It receives the current buffer and
// the number of additional bytes needed, and returns a replacement
// buffer (existing contents preserved) and whether growth succeeded.
type GrowFn func(buf []byte, additionalNeeded int) (grown []byte, ok bool)

// Context holds one link's callbacks plus the working buffer from the
// most recent Transaction. It is not safe for concurrent use: the
// protocol is inherently half-duplex and single-threaded.
type Context struct {
	Addr  uint16
	Tx    TransmitFn
	Rx    ReceiveFn
	Delay DelayFn
	Grow  GrowFn

	buf     []byte
	bufUsed int
}

// Buf returns the context's current working buffer and how much of it
// holds meaningful bytes after the last Transaction: the response body
// on success, or whatever partial state existed when it failed.
func (ctx *Context) Buf() (buf []byte, used int) {
	return ctx.buf, ctx.bufUsed
}

// Reset flushes any partial request the Notecard may have been
// received mid-transmission before this host's most recent restart, by
// sending a single newline it will read as an empty, terminated line.
func (ctx *Context) Reset() Status {
	req := make([]byte, 25)
	req[0] = '\n'
	return ctx.Transaction(IgnoreResponse, req)
}

// Transaction sends the newline-terminated request in buf (found by
// scanning for the first '\n') and, unless flags includes NoResponse,
// waits for and assembles a newline-terminated response. buf is
// consumed and reused as the I/O scratch buffer for both directions;
// its final contents (the response body, trimmed of the per-chunk
// read-ticket header bytes) are retrievable via Buf after a successful
// call.
func (ctx *Context) Transaction(flags Flags, buf []byte) Status {
	if ctx.Addr == 0 {
		ctx.Addr = DefaultAddress
	}
	if ctx.Tx == nil || ctx.Rx == nil || ctx.Delay == nil || len(buf) < 5 {
		return StatusConfig
	}

	ctx.buf = buf
	bufUsed := bytes.IndexByte(buf, '\n') + 1
	if bufUsed == 0 {
		return StatusTerminator
	}

	if len(ctx.buf)-bufUsed < 1 {
		return StatusTXBufferOverflow
	}
	copy(ctx.buf[1:1+bufUsed], ctx.buf[:bufUsed])

	left := bufUsed
	for left > 0 {
		chunklen := 250
		if left < chunklen {
			chunklen = left
		}
		ctx.buf[0] = byte(chunklen)
		if err := ctx.Tx(ctx.Addr, ctx.buf[:1+chunklen]); err != nil {
			ctx.bufUsed = bufUsed
			return StatusIOTransmit
		}
		ctx.Delay(250)

		left -= chunklen
		copy(ctx.buf[1:1+left], ctx.buf[1+chunklen:1+chunklen+left])
	}

	if flags&NoResponse != 0 {
		ctx.bufUsed = 0
		return StatusOK
	}

	// The transmit phase has fully consumed buf[:bufUsed]; the response
	// is assembled fresh starting at offset 0 rather than appended
	// after it.
	bufUsed = 0
	msLeftToWait := 5000
	chunklen := 0
	for {
		const hdrlen = 2

		if ctx.Grow != nil && bufUsed+hdrlen+chunklen > len(ctx.buf) {
			if grown, ok := ctx.Grow(ctx.buf, bufUsed+hdrlen+chunklen-len(ctx.buf)); ok {
				ctx.buf = grown
			}
		}
		if bufUsed+hdrlen+chunklen > len(ctx.buf) {
			chunklen = len(ctx.buf) - bufUsed - hdrlen
		}

		ctx.buf[bufUsed+0] = 0
		ctx.buf[bufUsed+1] = byte(chunklen)
		if err := ctx.Tx(ctx.Addr, ctx.buf[bufUsed:bufUsed+hdrlen]); err != nil {
			ctx.bufUsed = bufUsed
			return StatusIOTransmit
		}
		ctx.Delay(1)

		// The original C source returns IO_TRANSMIT here too on an rx
		// failure; this is the one status it gets wrong, since the
		// operation that just failed is the receive, not the transmit.
		if err := ctx.Rx(ctx.Addr, ctx.buf[bufUsed:bufUsed+chunklen+hdrlen]); err != nil {
			ctx.bufUsed = bufUsed
			return StatusIOReceive
		}
		ctx.Delay(5)

		availableBytes := int(ctx.buf[bufUsed+0])
		returnedBytes := int(ctx.buf[bufUsed+1])
		if returnedBytes != chunklen {
			ctx.bufUsed = bufUsed
			return StatusIOBadSizeReturned
		}

		receivedNewline := bytes.IndexByte(ctx.buf[bufUsed+2:bufUsed+2+chunklen], '\n') >= 0

		if flags&IgnoreResponse == 0 && chunklen > 0 {
			copy(ctx.buf[bufUsed:bufUsed+chunklen], ctx.buf[bufUsed+2:bufUsed+2+chunklen])
			bufUsed += chunklen
		}

		chunklen = availableBytes
		if chunklen > 0 {
			continue
		}
		if receivedNewline {
			break
		}

		const pollMs = 50
		if msLeftToWait < pollMs {
			ctx.bufUsed = bufUsed
			return StatusIOTimeout
		}
		ctx.Delay(pollMs)
		msLeftToWait -= pollMs
	}

	ctx.bufUsed = bufUsed
	return StatusOK
}
