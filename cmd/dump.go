// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kazwalker/jsonwire/pkg/cobs"
	"github.com/kazwalker/jsonwire/pkg/jsonb"
)

var dumpIn string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Hex dump a JSONB frame with opcode bytes highlighted",
	Long: `Print a classic 16-bytes-per-row hex dump of a frame's decoded
tagged-record stream (header, trailer and COBS stripped), color-coding
every byte of each record EnumNext walks by its opcode's category:
structural (object/array, and item keys), scalar (null/true/false),
string, numeric (integers, floats and binary blobs).

Colors are disabled automatically when stdout is not a terminal.`,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&dumpIn, "input", "i", "", "read raw frame bytes from this file instead of hex on stdin")
}

// byteClass categorizes each offset in a frame for the dump's
// highlighting, built by walking the frame with the same EnumNext a
// caller would use to decode it.
type byteClass int

const (
	classPlain byteClass = iota
	classStructural
	classScalar
	classString
	classNumeric
)

func runDump(cmd *cobra.Command, args []string) error {
	raw, err := readFrame()
	if err != nil {
		return err
	}

	payload, ok := unwrapFrame(raw)
	if !ok {
		return fmt.Errorf("dump: not a valid JSONB frame")
	}
	classes := classifyPayload(payload)

	out := colorable.NewColorableStdout()
	useColor := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	printHexDump(out, payload, classes, useColor)
	return nil
}

// unwrapFrame strips a frame's header/trailer and COBS-decodes its
// body into a fresh buffer, leaving raw untouched — the dump prints
// the decoded tagged-record stream, which is what a reader of the
// protocol actually cares about.
func unwrapFrame(raw []byte) ([]byte, bool) {
	buf := raw
	for len(buf) > 0 && buf[0] < 0x20 {
		buf = buf[1:]
	}
	for len(buf) > 0 && buf[len(buf)-1] < 0x20 {
		buf = buf[:len(buf)-1]
	}
	if len(buf) < len(jsonb.Header)+len(jsonb.Trailer) {
		return nil, false
	}
	if string(buf[:len(jsonb.Header)]) != jsonb.Header {
		return nil, false
	}
	buf = buf[len(jsonb.Header):]
	if string(buf[len(buf)-len(jsonb.Trailer):]) != jsonb.Trailer {
		return nil, false
	}
	buf = buf[:len(buf)-len(jsonb.Trailer)]

	decoded := make([]byte, len(buf))
	n := cobs.Decode(buf, jsonb.Terminator, decoded)
	return decoded[:n], true
}

// classifyPayload tags every byte of a decoded tagged-record stream
// with the opcode category of the record it belongs to, by replaying
// EnumNext and recomputing each record's byte span from its opcode
// and value rather than reaching into Reader's private cursor.
func classifyPayload(payload []byte) []byteClass {
	classes := make([]byteClass, len(payload))

	r := jsonb.NewReader()
	r.ParseDecoded(payload)

	pos := 0
	for {
		rec, ok := r.EnumNext()
		if !ok {
			break
		}
		start := pos
		if rec.HasName {
			fillRange(classes, pos, pos+len(rec.Name)+2, classStructural) // ITEM tag + name + NUL
			pos += len(rec.Name) + 2
			start = pos
		}
		pos++ // the value's own opcode byte
		class := classifyOpcode(rec.Opcode)
		width := recordPayloadWidth(rec)
		fillRange(classes, start, pos+width, class)
		pos += width
	}
	return classes
}

// recordPayloadWidth returns how many bytes a record occupies in the
// decoded stream after its opcode byte, counting a BIN* length prefix
// and a STRING's NUL terminator.
func recordPayloadWidth(rec jsonb.Record) int {
	switch rec.Opcode {
	case jsonb.String:
		return len(rec.Value) + 1 // NUL terminator
	case jsonb.Bin8:
		return 1 + len(rec.Value)
	case jsonb.Bin16:
		return 2 + len(rec.Value)
	case jsonb.Bin24:
		return 3 + len(rec.Value)
	case jsonb.Bin32:
		return 4 + len(rec.Value)
	default:
		return len(rec.Value)
	}
}

func fillRange(classes []byteClass, from, to int, class byteClass) {
	if from < 0 {
		from = 0
	}
	if to > len(classes) {
		to = len(classes)
	}
	for i := from; i < to; i++ {
		classes[i] = class
	}
}

func classifyOpcode(op jsonb.Opcode) byteClass {
	switch op {
	case jsonb.BeginObject, jsonb.EndObject, jsonb.BeginArray, jsonb.EndArray, jsonb.Item:
		return classStructural
	case jsonb.Null, jsonb.True, jsonb.False:
		return classScalar
	case jsonb.String:
		return classString
	case jsonb.Bin8, jsonb.Bin16, jsonb.Bin24, jsonb.Bin32,
		jsonb.Int8, jsonb.Int16, jsonb.Int32, jsonb.Int64,
		jsonb.Uint8, jsonb.Uint16, jsonb.Uint32, jsonb.Uint64,
		jsonb.Float, jsonb.Double:
		return classNumeric
	default:
		return classPlain
	}
}

func colorFor(c byteClass) string {
	switch c {
	case classStructural:
		return "\x1b[36m" // cyan
	case classScalar:
		return "\x1b[33m" // yellow
	case classString:
		return "\x1b[32m" // green
	case classNumeric:
		return "\x1b[35m" // magenta
	default:
		return ""
	}
}

const colorReset = "\x1b[0m"

func printHexDump(w io.Writer, buf []byte, classes []byteClass, useColor bool) {
	for row := 0; row < len(buf); row += 16 {
		end := row + 16
		if end > len(buf) {
			end = len(buf)
		}
		fmt.Fprintf(w, "%08x  ", row)
		for i := row; i < row+16; i++ {
			if i >= len(buf) {
				fmt.Fprint(w, "   ")
				continue
			}
			printByteHex(w, buf[i], classAt(classes, i), useColor)
			fmt.Fprint(w, " ")
			if i-row == 7 {
				fmt.Fprint(w, " ")
			}
		}
		fmt.Fprint(w, " |")
		for i := row; i < end; i++ {
			b := buf[i]
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			printByteChar(w, b, classAt(classes, i), useColor)
		}
		fmt.Fprintln(w, "|")
	}
}

func classAt(classes []byteClass, i int) byteClass {
	if i < 0 || i >= len(classes) {
		return classPlain
	}
	return classes[i]
}

func printByteHex(w io.Writer, b byte, class byteClass, useColor bool) {
	if useColor && class != classPlain {
		fmt.Fprintf(w, "%s%02x%s", colorFor(class), b, colorReset)
		return
	}
	fmt.Fprintf(w, "%02x", b)
}

func printByteChar(w io.Writer, b byte, class byteClass, useColor bool) {
	if useColor && class != classPlain {
		fmt.Fprintf(w, "%s%c%s", colorFor(class), b, colorReset)
		return
	}
	fmt.Fprintf(w, "%c", b)
}
