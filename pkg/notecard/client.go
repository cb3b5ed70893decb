// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker

// Package notecard composes the jsonb codec with the soi2c transactor
// into the client shape a caller actually wants: build a request as
// Go values, get a response back as Go values, without juggling raw
// buffers. It is the Go analogue of the original library's
// notecard.h, which is nothing but a renaming layer over soi2c and
// jsonb — here that composition is a real, small package instead of a
// macro file.
package notecard

import (
	"fmt"

	"github.com/kazwalker/jsonwire/pkg/jsonb"
	"github.com/kazwalker/jsonwire/pkg/soi2c"
)

// Builder appends the body of a request object. AddObjectBegin/End
// are handled by Client; build functions only add the object's
// members.
type Builder func(w *jsonb.Writer)

// Client is a notecard peripheral reachable over a soi2c.Context.
// Like the packages it composes, a Client is single-threaded.
type Client struct {
	link *soi2c.Context

	// InitialBufSize sizes the scratch buffer a request is built into
	// before sealing. It grows automatically (via growDouble) if a
	// request or response outgrows it.
	InitialBufSize int
}

// NewClient wraps an already-configured soi2c.Context (its Tx/Rx/Delay
// callbacks set to a transport such as soi2c.SerialTransport or
// soi2c.WebSocketTransport). If link.Grow is nil, NewClient installs a
// doubling grow policy so callers don't need to size buffers by hand.
func NewClient(link *soi2c.Context) *Client {
	if link.Grow == nil {
		link.Grow = growDouble
	}
	return &Client{link: link, InitialBufSize: 256}
}

func growDouble(buf []byte, additionalNeeded int) ([]byte, bool) {
	n := len(buf) * 2
	if n < len(buf)+additionalNeeded {
		n = len(buf) + additionalNeeded
	}
	grown := make([]byte, n)
	copy(grown, buf)
	return grown, true
}

func (c *Client) buildRequest(build Builder) ([]byte, error) {
	size := c.InitialBufSize
	if size <= 0 {
		size = 256
	}
	w := jsonb.NewWriter(make([]byte, size), growDouble)
	w.AddObjectBegin()
	if build != nil {
		build(w)
	}
	w.AddObjectEnd()
	if w.Overrun() {
		return nil, fmt.Errorf("notecard: request overflowed its buffer")
	}
	if !w.FormatEnd() {
		return nil, fmt.Errorf("notecard: failed to seal request frame")
	}
	frame, used := w.Buf()
	return frame[:used], nil
}

// Request builds an object via build, sends it and waits for a
// response, and returns a Reader positioned at the top of the parsed
// response value. The same coercing typed getters (jsonb.GetString,
// jsonb.GetInt32, and so on) that parse any JSONB value parse a
// Client's responses.
func (c *Client) Request(build Builder) (*jsonb.Reader, error) {
	frame, err := c.buildRequest(build)
	if err != nil {
		return nil, err
	}

	txbuf := make([]byte, len(frame)+512)
	copy(txbuf, frame)

	status := c.link.Transaction(0, txbuf)
	if status != soi2c.StatusOK {
		return nil, fmt.Errorf("notecard: request failed: %w", status.Err())
	}

	respBuf, respUsed := c.link.Buf()
	r := jsonb.NewReader()
	if !r.Parse(respBuf[:respUsed]) {
		return nil, fmt.Errorf("notecard: malformed response frame")
	}
	return r, nil
}

// Command sends an object and does not wait for a response, for
// fire-and-forget requests the peripheral never acknowledges.
func (c *Client) Command(build Builder) error {
	frame, err := c.buildRequest(build)
	if err != nil {
		return err
	}
	txbuf := make([]byte, len(frame)+32)
	copy(txbuf, frame)

	status := c.link.Transaction(soi2c.NoResponse, txbuf)
	if status != soi2c.StatusOK {
		return fmt.Errorf("notecard: command failed: %w", status.Err())
	}
	return nil
}

// Reset flushes any request the peripheral may have partially
// received before this process started.
func (c *Client) Reset() error {
	return c.link.Reset().Err()
}
