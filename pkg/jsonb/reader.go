// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker

package jsonb

import (
	"bytes"
	"math"

	"github.com/kazwalker/jsonwire/pkg/cobs"
)

// Record is one tagged datum produced by EnumNext: its opcode, the raw
// payload bytes (length already resolved from the opcode's fixed width
// or an explicit length prefix), and — when it was reached via an ITEM
// tag inside an object — its key name.
type Record struct {
	Opcode  Opcode
	Name    string
	HasName bool
	Value   []byte
}

// Reader walks a parsed JSONB value. Parse must succeed before Enum or
// EnumNext are called.
type Reader struct {
	buf    []byte
	cursor int
	prev   Opcode
}

// NewReader returns an unparsed Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Parse validates and unwraps buf's "{:"..."':}"\n envelope, then
// COBS-decodes the payload in place. buf is mutated; the decoded
// tagged-record stream aliases it. Parse trims any leading or trailing
// control bytes (below 0x20) before checking the header and trailer,
// matching jsonbParse's tolerance for stray framing bytes left behind
// by a transport.
func (r *Reader) Parse(buf []byte) bool {
	for len(buf) > 0 && buf[0] < 0x20 {
		buf = buf[1:]
	}
	for len(buf) > 0 && buf[len(buf)-1] < 0x20 {
		buf = buf[:len(buf)-1]
	}
	if len(buf) < len(Header)+len(Trailer) {
		return false
	}
	if string(buf[:len(Header)]) != Header {
		return false
	}
	buf = buf[len(Header):]
	if string(buf[len(buf)-len(Trailer):]) != Trailer {
		return false
	}
	buf = buf[:len(buf)-len(Trailer)]

	n := cobs.Decode(buf, Terminator, buf)
	r.buf = buf[:n]
	r.cursor = 0
	r.prev = Invalid
	return true
}

// ParseDecoded positions the reader over a tagged-record stream that
// has already been unwrapped and COBS-decoded by the caller, skipping
// the envelope handling Parse does. Diagnostic tooling that needs to
// inspect the decoded bytes directly (a hex dump, say) decodes the
// frame itself and hands the result here instead of duplicating
// EnumNext's traversal.
func (r *Reader) ParseDecoded(buf []byte) {
	r.buf = buf
	r.cursor = 0
	r.prev = Invalid
}

// Enum rewinds the cursor to the start of the parsed value, so
// EnumNext can walk it again from the top.
func (r *Reader) Enum() {
	r.cursor = 0
	r.prev = Invalid
}

// EnumNext returns the next record in the stream and advances past it.
// The bool result is false once the stream is exhausted or a malformed
// record is hit (a truncated length prefix, an unterminated string or
// item name, or an unknown opcode).
func (r *Reader) EnumNext() (Record, bool) {
	if r.cursor >= len(r.buf) {
		return Record{}, false
	}

	opcode := Opcode(r.buf[r.cursor])
	r.cursor++

	var rec Record
	if opcode == Item {
		nul := bytes.IndexByte(r.buf[r.cursor:], 0)
		if nul < 0 {
			return Record{}, false
		}
		rec.Name = string(r.buf[r.cursor : r.cursor+nul])
		rec.HasName = true
		r.cursor += nul + 1
		if r.cursor >= len(r.buf) {
			return Record{}, false
		}
		opcode = Opcode(r.buf[r.cursor])
		r.cursor++
	}
	rec.Opcode = opcode
	r.prev = opcode

	switch opcode {
	case BeginObject, EndObject, BeginArray, EndArray, Null, True, False:
		// no payload

	case String:
		nul := bytes.IndexByte(r.buf[r.cursor:], 0)
		if nul < 0 {
			return Record{}, false
		}
		rec.Value = r.buf[r.cursor : r.cursor+nul]
		r.cursor += nul + 1

	case Bin8, Bin16, Bin24, Bin32:
		widthBytes := map[Opcode]int{Bin8: 1, Bin16: 2, Bin24: 3, Bin32: 4}[opcode]
		if r.cursor+widthBytes > len(r.buf) {
			return Record{}, false
		}
		length := 0
		for i := 0; i < widthBytes; i++ {
			length |= int(r.buf[r.cursor+i]) << (8 * uint(i))
		}
		r.cursor += widthBytes
		if r.cursor+length > len(r.buf) {
			return Record{}, false
		}
		rec.Value = r.buf[r.cursor : r.cursor+length]
		r.cursor += length

	case Int8, Uint8:
		if !r.take(&rec, 1) {
			return Record{}, false
		}
	case Int16, Uint16:
		if !r.take(&rec, 2) {
			return Record{}, false
		}
	case Int32, Uint32, Float:
		if !r.take(&rec, 4) {
			return Record{}, false
		}
	case Int64, Uint64, Double:
		if !r.take(&rec, 8) {
			return Record{}, false
		}

	default:
		return Record{}, false
	}

	return rec, true
}

func (r *Reader) take(rec *Record, width int) bool {
	if r.cursor+width > len(r.buf) {
		return false
	}
	rec.Value = r.buf[r.cursor : r.cursor+width]
	r.cursor += width
	return true
}

// GetObjectItem scans the whole value (resetting Enum first) for a
// top-level-of-the-outermost-object ITEM named name, returning its
// value record. Matches jsonbGetObjectItem: a running object-nesting
// counter is incremented on BEGIN_OBJECT and decremented on
// END_OBJECT, and only records seen at nesting depth 1 are considered
// — a same-named key nested inside a child object never shadows or
// matches.
func (r *Reader) GetObjectItem(name string) (Record, bool) {
	r.Enum()
	nesting := 0
	for {
		rec, ok := r.EnumNext()
		if !ok {
			return Record{}, false
		}
		if nesting == 1 && rec.HasName && rec.Name == name {
			return rec, true
		}
		switch rec.Opcode {
		case BeginObject:
			nesting++
		case EndObject:
			nesting--
		}
	}
}

// Numeric coercion helpers: every typed getter below accepts any of
// the wire's numeric opcodes and coerces the raw bytes to the
// requested Go type, matching the switch statements in
// jsonbGetInt64/jsonbGetUint64/jsonbGetDouble. TRUE and FALSE read as
// 1 and 0; a record of any other kind, or a missing key, yields the
// type's zero value.

func rawUint(v []byte) uint64 {
	var u uint64
	for i, b := range v {
		u |= uint64(b) << (8 * uint(i))
	}
	return u
}

func rawInt(opcode Opcode, v []byte) int64 {
	u := rawUint(v)
	switch opcode {
	case Int8:
		return int64(int8(u))
	case Int16:
		return int64(int16(u))
	case Int32:
		return int64(int32(u))
	case Int64:
		return int64(u)
	default:
		return int64(u)
	}
}

// GetInt64 coerces rec to a signed 64-bit integer: any integer opcode
// sign/zero-extends as appropriate, FLOAT/DOUBLE truncate toward zero,
// TRUE/FALSE become 1/0, and anything else is 0.
func GetInt64(rec Record, ok bool) int64 {
	if !ok {
		return 0
	}
	switch rec.Opcode {
	case Int8, Int16, Int32, Int64:
		return rawInt(rec.Opcode, rec.Value)
	case Uint8, Uint16, Uint32, Uint64:
		return int64(rawUint(rec.Value))
	case Float:
		return int64(math.Float32frombits(uint32(rawUint(rec.Value))))
	case Double:
		return int64(math.Float64frombits(rawUint(rec.Value)))
	case True:
		return 1
	case False, Null:
		return 0
	default:
		return 0
	}
}

// GetInt32 is GetInt64 truncated to 32 bits.
func GetInt32(rec Record, ok bool) int32 {
	return int32(GetInt64(rec, ok))
}

// GetUint64 coerces rec to an unsigned 64-bit integer.
func GetUint64(rec Record, ok bool) uint64 {
	if !ok {
		return 0
	}
	switch rec.Opcode {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return rawUint(rec.Value)
	case Float:
		return uint64(math.Float32frombits(uint32(rawUint(rec.Value))))
	case Double:
		return uint64(math.Float64frombits(rawUint(rec.Value)))
	case True:
		return 1
	case False, Null:
		return 0
	default:
		return 0
	}
}

// GetUint32 is GetUint64 truncated to 32 bits.
func GetUint32(rec Record, ok bool) uint32 {
	return uint32(GetUint64(rec, ok))
}

// GetDouble coerces rec to a float64: FLOAT/DOUBLE decode their IEEE
// bits, every integer opcode converts numerically, TRUE/FALSE become
// 1/0.
func GetDouble(rec Record, ok bool) float64 {
	if !ok {
		return 0
	}
	switch rec.Opcode {
	case Float:
		return float64(math.Float32frombits(uint32(rawUint(rec.Value))))
	case Double:
		return math.Float64frombits(rawUint(rec.Value))
	case Int8, Int16, Int32, Int64:
		return float64(rawInt(rec.Opcode, rec.Value))
	case Uint8, Uint16, Uint32, Uint64:
		return float64(rawUint(rec.Value))
	case True:
		return 1
	case False, Null:
		return 0
	default:
		return 0
	}
}

// GetFloat is GetDouble narrowed to float32.
func GetFloat(rec Record, ok bool) float32 {
	return float32(GetDouble(rec, ok))
}

// GetBool coerces rec to bool: true iff rec holds TRUE, everything
// else (including a missing key) is false.
func GetBool(rec Record, ok bool) bool {
	if !ok {
		return false
	}
	switch rec.Opcode {
	case True:
		return true
	default:
		return false
	}
}

// GetString returns rec's value as a string for STRING records, and
// the empty string for everything else including a missing key.
func GetString(rec Record, ok bool) string {
	if !ok || rec.Opcode != String {
		return ""
	}
	return string(rec.Value)
}

// GetBin returns rec's raw bytes for a BIN* record, and nil for
// everything else including a missing key.
func GetBin(rec Record, ok bool) []byte {
	if !ok {
		return nil
	}
	switch rec.Opcode {
	case Bin8, Bin16, Bin24, Bin32:
		return rec.Value
	default:
		return nil
	}
}

// GetErr is an alias for GetString("err"), matching jsonbGetErr: most
// responses that failed carry their error message in a top-level "err"
// member.
func (r *Reader) GetErr() string {
	return GetString(r.GetObjectItem("err"))
}
