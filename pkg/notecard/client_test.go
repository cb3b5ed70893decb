// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker

package notecard

import (
	"testing"

	"github.com/kazwalker/jsonwire/pkg/jsonb"
	"github.com/kazwalker/jsonwire/pkg/soi2c"
)

// loopback is a fake peripheral: it reassembles the raw bytes of
// whatever request it was transmitted, hands them to a responder
// function to produce a reply, and serves that reply back through the
// soi2c polling protocol exactly as a real device would.
type loopback struct {
	reqBuf    []byte
	respBuf   []byte
	respSent  int
	responder func(request []byte) []byte
}

func (l *loopback) transmit(_ uint16, buf []byte) error {
	if len(buf) == 2 && buf[0] == 0 {
		return nil // poll ticket, nothing to record
	}
	chunklen := int(buf[0])
	l.reqBuf = append(l.reqBuf, buf[1:1+chunklen]...)
	return nil
}

func (l *loopback) receive(_ uint16, buf []byte) error {
	if l.respBuf == nil {
		l.respBuf = l.responder(l.reqBuf)
	}
	chunklen := len(buf) - 2
	remaining := len(l.respBuf) - l.respSent
	n := chunklen
	if n > remaining {
		n = remaining
	}
	available := remaining - n
	if available > 255 {
		available = 255
	}
	buf[0] = byte(available)
	buf[1] = byte(n)
	copy(buf[2:2+n], l.respBuf[l.respSent:l.respSent+n])
	l.respSent += n
	return nil
}

func (l *loopback) delay(int) {}

func newTestClient(responder func(request []byte) []byte) *Client {
	link := &soi2c.Context{}
	peer := &loopback{responder: responder}
	link.Tx = peer.transmit
	link.Rx = peer.receive
	link.Delay = peer.delay
	return NewClient(link)
}

// S7: a typed request/response pair round-trips through jsonb built
// on top of a fake soi2c transport, exercising the whole composed
// stack (Client -> jsonb -> soi2c -> fake link -> jsonb -> Client).
func TestClientRequestRoundTrip(t *testing.T) {
	c := newTestClient(func(request []byte) []byte {
		r := jsonb.NewReader()
		if !r.Parse(request) {
			t.Fatalf("peripheral: request did not parse as a JSONB frame")
		}
		reqItem, ok := r.GetObjectItem("req")
		if jsonb.GetString(reqItem, ok) != "card.status" {
			t.Fatalf("peripheral: unexpected req = %q", jsonb.GetString(reqItem, ok))
		}

		w := jsonb.NewWriter(make([]byte, 256), nil)
		w.AddObjectBegin()
		w.AddBoolToObject("connected", true)
		w.AddInt32ToObject("temp", 72)
		w.AddStringToObject("status", "{normal}")
		w.AddObjectEnd()
		if !w.FormatEnd() {
			t.Fatalf("peripheral: failed to seal response")
		}
		buf, used := w.Buf()
		return buf[:used]
	})

	r, err := c.Request(func(w *jsonb.Writer) {
		w.AddStringToObject("req", "card.status")
	})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	connected, ok := r.GetObjectItem("connected")
	if !jsonb.GetBool(connected, ok) {
		t.Fatalf("expected connected = true")
	}
	temp, ok := r.GetObjectItem("temp")
	if jsonb.GetInt32(temp, ok) != 72 {
		t.Fatalf("temp = %d, want 72", jsonb.GetInt32(temp, ok))
	}
	status, ok := r.GetObjectItem("status")
	if jsonb.GetString(status, ok) != "{normal}" {
		t.Fatalf("status = %q", jsonb.GetString(status, ok))
	}
}

func TestClientCommandNoResponse(t *testing.T) {
	c := newTestClient(func([]byte) []byte {
		t.Fatalf("Command should never wait for a response")
		return nil
	})
	err := c.Command(func(w *jsonb.Writer) {
		w.AddStringToObject("req", "card.sleep")
	})
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
}

func TestClientReset(t *testing.T) {
	c := newTestClient(func(request []byte) []byte {
		return []byte("\n")
	})
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
}
