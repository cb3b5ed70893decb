// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker

package jsonb

import (
	"math"

	"github.com/kazwalker/jsonwire/pkg/cobs"
)

// GrowFn is called when a Writer's buffer is too small to hold the next
// record. It receives the current buffer and the number of additional
// bytes needed beyond its current length, and returns a replacement
// buffer (with buf's existing contents preserved at the same offsets)
// and whether growth succeeded. A nil GrowFn means the buffer is fixed
// size; any overflow latches Overrun.
type GrowFn func(buf []byte, additionalNeeded int) (grown []byte, ok bool)

// Writer builds a JSONB value into a caller-supplied buffer. Every Add*
// call appends one tagged record; FormatEnd seals the buffer into the
// "{:"...":}"\n" wire envelope in place. Once FormatEnd has run,
// further Add* calls operate on the now-encoded bytes and will produce
// garbage until FormatBegin resets the Writer onto a buffer.
type Writer struct {
	buf     []byte
	used    int
	overrun bool
	growFn  GrowFn
}

// NewWriter returns a Writer that appends into buf, growing it via
// growFn (which may be nil) when it runs out of room.
func NewWriter(buf []byte, growFn GrowFn) *Writer {
	return &Writer{buf: buf, growFn: growFn}
}

// Overrun reports whether any Add* call has failed to fit, either
// because growFn is nil or because it declined to grow further, or
// whether FormatEnd found that the sealed frame would not fit. Once
// set, every subsequent Add* call and FormatEnd are no-ops.
func (w *Writer) Overrun() bool {
	return w.overrun
}

// Buf returns the writer's current backing buffer and the number of
// bytes used so far. Before FormatEnd this is the raw tagged-record
// stream; after FormatEnd it is the sealed, COBS-encoded frame.
func (w *Writer) Buf() (buf []byte, used int) {
	return w.buf, w.used
}

// appendBytes is the sole mutation point, mirroring the original
// jbAppendBytes: it writes an optional opcode tag followed by payload,
// growing the buffer at most once per call. Capacity is re-checked
// after a successful grow, since a GrowFn is free to return a buffer
// smaller than requested.
func (w *Writer) appendBytes(opcode Opcode, payload []byte) {
	if w.overrun {
		return
	}
	needed := len(payload)
	if opcode != Invalid {
		needed++
	}
	if w.used+needed > len(w.buf) {
		if w.growFn == nil {
			w.overrun = true
			return
		}
		grown, ok := w.growFn(w.buf, w.used+needed-len(w.buf))
		if !ok {
			w.overrun = true
			return
		}
		w.buf = grown
		if w.used+needed > len(w.buf) {
			w.overrun = true
			return
		}
	}
	if opcode != Invalid {
		w.buf[w.used] = byte(opcode)
		w.used++
	}
	if len(payload) > 0 {
		copy(w.buf[w.used:], payload)
		w.used += len(payload)
	}
}

// appendWidth writes opcode followed by the low width bytes of v,
// little-endian. Used for every fixed-width integer, float, and
// length-prefix append.
func (w *Writer) appendWidth(opcode Opcode, v uint64, width int) {
	var tmp [8]byte
	for i := 0; i < width; i++ {
		tmp[i] = byte(v >> (8 * uint(i)))
	}
	w.appendBytes(opcode, tmp[:width])
}

// Structural records.

func (w *Writer) AddObjectBegin() { w.appendBytes(BeginObject, nil) }
func (w *Writer) AddObjectEnd()   { w.appendBytes(EndObject, nil) }
func (w *Writer) AddArrayBegin()  { w.appendBytes(BeginArray, nil) }
func (w *Writer) AddArrayEnd()    { w.appendBytes(EndArray, nil) }

// AddItem writes an object-key record: an ITEM tag followed by name and
// a NUL terminator. The value record (any other Add* call) must follow
// immediately.
func (w *Writer) AddItem(name string) {
	payload := make([]byte, len(name)+1)
	copy(payload, name)
	w.appendBytes(Item, payload)
}

// Scalars.

func (w *Writer) AddNull()  { w.appendBytes(Null, nil) }
func (w *Writer) AddTrue()  { w.appendBytes(True, nil) }
func (w *Writer) AddFalse() { w.appendBytes(False, nil) }

func (w *Writer) AddBool(v bool) {
	if v {
		w.AddTrue()
	} else {
		w.AddFalse()
	}
}

// AddString writes a NUL-terminated copy of s. s must not itself
// contain a NUL byte (not enforced, matching the source).
func (w *Writer) AddString(s string) {
	payload := make([]byte, len(s)+1)
	copy(payload, s)
	w.appendBytes(String, payload)
}

// AddStringLen writes the first n bytes of s as a STRING record without
// relying on a NUL terminator inside s, then tacks on the record's own
// terminating NUL as a separate append. Matches jsonbAddStringLen: the
// caller vouches that s[:n] contains no embedded NUL.
func (w *Writer) AddStringLen(s string, n int) {
	w.appendBytes(String, []byte(s[:n]))
	w.appendBytes(Invalid, []byte{0})
}

// AddBin writes the first n bytes of bin as a length-prefixed binary
// blob, choosing the narrowest of BIN8/16/24/32 that can hold n.
func (w *Writer) AddBin(bin []byte, n int) {
	switch {
	case n < 0x100:
		w.appendWidth(Bin8, uint64(n), 1)
	case n < 0x10000:
		w.appendWidth(Bin16, uint64(n), 2)
	case n < 0x1000000:
		w.appendWidth(Bin24, uint64(n), 3)
	default:
		w.appendWidth(Bin32, uint64(n), 4)
	}
	w.appendBytes(Invalid, bin[:n])
}

func (w *Writer) AddInt8(v int8)   { w.appendWidth(Int8, uint64(uint8(v)), 1) }
func (w *Writer) AddInt16(v int16) { w.appendWidth(Int16, uint64(uint16(v)), 2) }
func (w *Writer) AddInt32(v int32) { w.appendWidth(Int32, uint64(uint32(v)), 4) }

// AddInt64 writes the full 64-bit value. The original jsonbAddInt64
// only accepted a 32-bit argument and sign-extended it; this Go
// implementation takes int64 and stores all 8 bytes.
func (w *Writer) AddInt64(v int64) { w.appendWidth(Int64, uint64(v), 8) }

func (w *Writer) AddUint8(v uint8)   { w.appendWidth(Uint8, uint64(v), 1) }
func (w *Writer) AddUint16(v uint16) { w.appendWidth(Uint16, uint64(v), 2) }
func (w *Writer) AddUint32(v uint32) { w.appendWidth(Uint32, uint64(v), 4) }

// AddUint64 writes the full 64-bit value, fixing the same truncation
// the original jsonbAddUint64 had for AddInt64.
func (w *Writer) AddUint64(v uint64) { w.appendWidth(Uint64, v, 8) }

func (w *Writer) AddFloat(v float32)  { w.appendWidth(Float, uint64(math.Float32bits(v)), 4) }
func (w *Writer) AddDouble(v float64) { w.appendWidth(Double, math.Float64bits(v), 8) }

// ToObject convenience wrappers: each writes an ITEM(name) record
// immediately followed by the named value, for building object bodies
// without interleaving AddItem calls by hand.

func (w *Writer) AddNullToObject(name string)  { w.AddItem(name); w.AddNull() }
func (w *Writer) AddBoolToObject(name string, v bool) {
	w.AddItem(name)
	w.AddBool(v)
}
func (w *Writer) AddStringToObject(name, v string) {
	w.AddItem(name)
	w.AddString(v)
}
func (w *Writer) AddStringLenToObject(name, v string, n int) {
	w.AddItem(name)
	w.AddStringLen(v, n)
}
func (w *Writer) AddBinToObject(name string, bin []byte, n int) {
	w.AddItem(name)
	w.AddBin(bin, n)
}
func (w *Writer) AddInt32ToObject(name string, v int32) {
	w.AddItem(name)
	w.AddInt32(v)
}
func (w *Writer) AddInt64ToObject(name string, v int64) {
	w.AddItem(name)
	w.AddInt64(v)
}
func (w *Writer) AddUint32ToObject(name string, v uint32) {
	w.AddItem(name)
	w.AddUint32(v)
}
func (w *Writer) AddUint64ToObject(name string, v uint64) {
	w.AddItem(name)
	w.AddUint64(v)
}
func (w *Writer) AddFloatToObject(name string, v float32) {
	w.AddItem(name)
	w.AddFloat(v)
}
func (w *Writer) AddDoubleToObject(name string, v float64) {
	w.AddItem(name)
	w.AddDouble(v)
}
func (w *Writer) AddObjectToObject(name string) {
	w.AddItem(name)
	w.AddObjectBegin()
}
func (w *Writer) AddArrayToObject(name string) {
	w.AddItem(name)
	w.AddArrayBegin()
}

// FormatBegin resets the writer onto buf, discarding any prior content.
// Used when a caller wants to reuse one Writer (and its GrowFn) across
// several independent values.
func (w *Writer) FormatBegin(buf []byte) {
	w.buf = buf
	w.used = 0
	w.overrun = false
}

// FormatEnd seals the tagged-record stream written so far into the
// wire envelope, in place: the raw payload is shifted up by just
// enough headroom to absorb COBS's worst-case expansion, then
// COBS-encoded back down into the vacated space ahead of it, and
// finally wrapped with the header, trailer, and terminator. Returns
// false (without mutating the logical value) if the buffer has already
// overrun or the envelope cannot fit in the buffer's capacity.
func (w *Writer) FormatEnd() bool {
	if w.overrun {
		return false
	}
	siglen := len(Header) + len(Trailer) + 1
	capacity := len(w.buf)
	if capacity < siglen {
		w.overrun = true
		return false
	}
	budget := capacity - siglen
	headroom := budget - cobs.GuaranteedFit(budget)
	if w.used+headroom > budget {
		w.overrun = true
		return false
	}

	shift := headroom + len(Header)
	copy(w.buf[shift:shift+w.used], w.buf[:w.used])
	copy(w.buf[:len(Header)], Header)

	n := cobs.Encode(w.buf[shift:shift+w.used], Terminator, w.buf[len(Header):])
	pos := len(Header) + n
	copy(w.buf[pos:pos+len(Trailer)], Trailer)
	pos += len(Trailer)
	w.buf[pos] = Terminator
	pos++

	w.used = pos
	return true
}
