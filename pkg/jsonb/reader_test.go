// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker

package jsonb

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

func buildSample(w *Writer) {
	w.AddObjectBegin()
	w.AddStringToObject("name", "notecard")
	w.AddInt32ToObject("count", -7)
	w.AddUint64ToObject("big", 0xFFFFFFFFFF)
	w.AddBoolToObject("ok", true)
	w.AddDoubleToObject("pi", 3.14159)
	w.AddNullToObject("none")
	w.AddArrayToObject("items")
	w.AddString("x")
	w.AddString("y")
	w.AddArrayEnd()
	w.AddObjectEnd()
}

func TestReaderRoundTrip(t *testing.T) {
	w := NewWriter(make([]byte, 256), nil)
	buildSample(w)
	if !w.FormatEnd() {
		t.Fatalf("FormatEnd failed")
	}
	buf, used := w.Buf()
	frame := append([]byte(nil), buf[:used]...)

	r := NewReader()
	if !r.Parse(frame) {
		t.Fatalf("Parse failed on a freshly sealed frame")
	}

	name, ok := r.GetObjectItem("name")
	if !ok || GetString(name, ok) != "notecard" {
		t.Fatalf("GetObjectItem(name) = %+v, ok=%v", name, ok)
	}
	count, ok := r.GetObjectItem("count")
	if GetInt32(count, ok) != -7 {
		t.Fatalf("count = %d, want -7", GetInt32(count, ok))
	}
	big, ok := r.GetObjectItem("big")
	if GetUint64(big, ok) != 0xFFFFFFFFFF {
		t.Fatalf("big = %#x", GetUint64(big, ok))
	}
	okItem, ok := r.GetObjectItem("ok")
	if !GetBool(okItem, ok) {
		t.Fatalf("ok should coerce to true")
	}
	pi, ok := r.GetObjectItem("pi")
	if got := GetDouble(pi, ok); got < 3.14158 || got > 3.1416 {
		t.Fatalf("pi = %v", got)
	}
	none, ok := r.GetObjectItem("none")
	if !ok || none.Opcode != Null {
		t.Fatalf("none should be a present NULL record")
	}
	if _, ok := r.GetObjectItem("missing"); ok {
		t.Fatalf("missing key should not be found")
	}
}

// S2-shaped scenario: enumerating a sealed value yields records in
// the order they were written, nesting included.
func TestReaderEnumOrder(t *testing.T) {
	w := NewWriter(make([]byte, 256), nil)
	w.AddArrayBegin()
	w.AddInt8(1)
	w.AddArrayBegin()
	w.AddInt8(2)
	w.AddArrayEnd()
	w.AddInt8(3)
	w.AddArrayEnd()
	if !w.FormatEnd() {
		t.Fatalf("FormatEnd failed")
	}
	buf, used := w.Buf()

	r := NewReader()
	if !r.Parse(buf[:used]) {
		t.Fatalf("Parse failed")
	}
	want := []Opcode{BeginArray, Int8, BeginArray, Int8, EndArray, Int8, EndArray}
	for i, wantOp := range want {
		rec, ok := r.EnumNext()
		if !ok {
			t.Fatalf("record %d: EnumNext returned false early", i)
		}
		if rec.Opcode != wantOp {
			t.Fatalf("record %d: opcode = %v, want %v", i, rec.Opcode, wantOp)
		}
	}
	if _, ok := r.EnumNext(); ok {
		t.Fatalf("expected stream exhausted")
	}
}

// Invariant: EnumNext treats FLOAT as 4 bytes and DOUBLE as 8 bytes
// (the writer's widths), not the source's buggy 8/16.
func TestEnumNextFloatDoubleWidths(t *testing.T) {
	w := NewWriter(make([]byte, 64), nil)
	w.AddFloat(1.5)
	w.AddDouble(2.5)
	if !w.FormatEnd() {
		t.Fatalf("FormatEnd failed")
	}
	buf, used := w.Buf()

	r := NewReader()
	if !r.Parse(buf[:used]) {
		t.Fatalf("Parse failed")
	}
	f, ok := r.EnumNext()
	if !ok || f.Opcode != Float || len(f.Value) != 4 {
		t.Fatalf("float record = %+v ok=%v", f, ok)
	}
	if GetFloat(f, true) != 1.5 {
		t.Fatalf("float value = %v", GetFloat(f, true))
	}
	d, ok := r.EnumNext()
	if !ok || d.Opcode != Double || len(d.Value) != 8 {
		t.Fatalf("double record = %+v ok=%v", d, ok)
	}
	if GetDouble(d, true) != 2.5 {
		t.Fatalf("double value = %v", GetDouble(d, true))
	}
}

func TestParseRejectsBadFrame(t *testing.T) {
	r := NewReader()
	if r.Parse([]byte("not a frame")) {
		t.Fatalf("Parse should reject a frame with no header/trailer")
	}
	if r.Parse([]byte("")) {
		t.Fatalf("Parse should reject an empty buffer")
	}
}

func TestParseTrimsStrayControlBytes(t *testing.T) {
	w := NewWriter(make([]byte, 64), nil)
	w.AddObjectBegin()
	w.AddStringToObject("k", "v")
	w.AddObjectEnd()
	if !w.FormatEnd() {
		t.Fatalf("FormatEnd failed")
	}
	buf, used := w.Buf()
	framed := append([]byte{0x00, 0x01}, buf[:used]...)
	framed = append(framed, 0x00)

	r := NewReader()
	if !r.Parse(framed) {
		t.Fatalf("Parse should trim leading/trailing control bytes")
	}
	v, ok := r.GetObjectItem("k")
	if GetString(v, ok) != "v" {
		t.Fatalf("k = %q", GetString(v, ok))
	}
}

// S3: a binary blob round-trips through AddBinToObject/GetBin, and the
// terminator byte it contains never appears in the framed COBS body
// (only the trailer's final Terminator byte carries that value).
func TestBinRoundTripAndNoTerminatorInBody(t *testing.T) {
	w := NewWriter(make([]byte, 64), nil)
	w.AddObjectBegin()
	w.AddBinToObject("b", []byte{0x00, 0x0A, 0xFF}, 3)
	w.AddObjectEnd()
	if !w.FormatEnd() {
		t.Fatalf("FormatEnd failed")
	}
	buf, used := w.Buf()
	frame := append([]byte(nil), buf[:used]...)

	body := frame[len(Header) : len(frame)-len(Trailer)-1]
	if bytes.IndexByte(body, Terminator) >= 0 {
		t.Fatalf("COBS body contains the terminator byte: % x", body)
	}

	r := NewReader()
	if !r.Parse(frame) {
		t.Fatalf("Parse failed on a freshly sealed frame")
	}
	b, ok := r.GetObjectItem("b")
	if !ok {
		t.Fatalf("key %q not found", "b")
	}
	if got := GetBin(b, ok); !bytes.Equal(got, []byte{0x00, 0x0A, 0xFF}) {
		t.Fatalf("GetBin = % x, want 00 0a ff", got)
	}
}

func getFuzzRounds() int {
	if v := os.Getenv("FUZZ_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 500
}

func getFuzzSeed() int64 {
	if v := os.Getenv("FUZZ_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return time.Now().UnixNano()
}

// TestFuzzWriterReaderRoundTrip builds a random flat object of random
// scalar members and checks every member reads back exactly. Reproduce
// a failure with FUZZ_SEED=<seed>.
func TestFuzzWriterReaderRoundTrip(t *testing.T) {
	seed := getFuzzSeed()
	t.Logf("seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	rng := rand.New(rand.NewSource(seed))
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		n := rng.Intn(20) + 1
		type member struct {
			key  string
			kind int
			i    int64
			u    uint64
			f    float64
			s    string
			b    bool
			bin  []byte
		}
		members := make([]member, n)
		w := NewWriter(make([]byte, 4096), growDouble)
		w.AddObjectBegin()
		for i := range members {
			m := member{key: fmt.Sprintf("k%d", i), kind: rng.Intn(6)}
			switch m.kind {
			case 0:
				m.i = int64(rng.Int31()) - int64(rng.Int31())
				w.AddInt32ToObject(m.key, int32(m.i))
			case 1:
				m.u = rng.Uint64()
				w.AddUint64ToObject(m.key, m.u)
			case 2:
				m.f = rng.Float64()
				w.AddDoubleToObject(m.key, m.f)
			case 3:
				m.s = fmt.Sprintf("val-%d", rng.Intn(1000))
				w.AddStringToObject(m.key, m.s)
			case 4:
				m.b = rng.Intn(2) == 0
				w.AddBoolToObject(m.key, m.b)
			case 5:
				m.bin = make([]byte, rng.Intn(16))
				rng.Read(m.bin)
				w.AddBinToObject(m.key, m.bin, len(m.bin))
			}
			members[i] = m
		}
		w.AddObjectEnd()
		if w.Overrun() {
			t.Fatalf("round %d: unexpected overrun", round)
		}
		if !w.FormatEnd() {
			t.Fatalf("round %d: FormatEnd failed", round)
		}
		buf, used := w.Buf()

		r := NewReader()
		if !r.Parse(buf[:used]) {
			t.Fatalf("round %d: Parse failed on a freshly sealed frame", round)
		}
		for _, m := range members {
			rec, ok := r.GetObjectItem(m.key)
			if !ok {
				t.Fatalf("round %d: key %q not found", round, m.key)
			}
			switch m.kind {
			case 0:
				if GetInt32(rec, ok) != int32(m.i) {
					t.Fatalf("round %d: key %q int mismatch: got %d want %d", round, m.key, GetInt32(rec, ok), int32(m.i))
				}
			case 1:
				if GetUint64(rec, ok) != m.u {
					t.Fatalf("round %d: key %q uint mismatch: got %d want %d", round, m.key, GetUint64(rec, ok), m.u)
				}
			case 2:
				if GetDouble(rec, ok) != m.f {
					t.Fatalf("round %d: key %q float mismatch: got %v want %v", round, m.key, GetDouble(rec, ok), m.f)
				}
			case 3:
				if GetString(rec, ok) != m.s {
					t.Fatalf("round %d: key %q string mismatch: got %q want %q", round, m.key, GetString(rec, ok), m.s)
				}
			case 4:
				if GetBool(rec, ok) != m.b {
					t.Fatalf("round %d: key %q bool mismatch: got %v want %v", round, m.key, GetBool(rec, ok), m.b)
				}
			case 5:
				if got := GetBin(rec, ok); !bytes.Equal(got, m.bin) {
					t.Fatalf("round %d: key %q bin mismatch: got % x want % x", round, m.key, got, m.bin)
				}
			}
		}
	}
}
