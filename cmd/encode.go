// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kazwalker/jsonwire/pkg/jsonb"
)

var (
	encodeFields []string
	encodeOut    string
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a JSONB frame from key=type:value pairs",
	Long: `Build a single JSONB object and print its sealed frame.

Each --set flag adds one member, in the form key=type:value. Supported
types: string, bool, int, uint, float, double, null, bin. int and uint
values are always written at full width, as INT64 and UINT64; narrower
integer widths are not chosen. bin's value is a hex string and picks
the narrowest of BIN8/16/24/32.

  jsonwire encode --set req=string:card.status --set seq=int:7
  jsonwire encode --set payload=bin:000aff

Without -o, the frame is printed as hex. With -o, the raw framed bytes
are written to the named file.`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringArrayVar(&encodeFields, "set", nil, "key=type:value member to add (repeatable)")
	encodeCmd.Flags().StringVarP(&encodeOut, "output", "o", "", "write raw frame bytes to this file instead of printing hex")
}

func runEncode(cmd *cobra.Command, args []string) error {
	w := jsonb.NewWriter(make([]byte, 256), growDoubleBuf)
	w.AddObjectBegin()
	for _, field := range encodeFields {
		if err := addEncodeField(w, field); err != nil {
			return err
		}
	}
	w.AddObjectEnd()

	if w.Overrun() {
		return fmt.Errorf("encode: object overflowed its buffer")
	}
	if !w.FormatEnd() {
		return fmt.Errorf("encode: failed to seal frame")
	}
	buf, used := w.Buf()
	frame := buf[:used]

	if encodeOut != "" {
		return os.WriteFile(encodeOut, frame, 0o644)
	}
	fmt.Println(hex.EncodeToString(frame))
	return nil
}

func growDoubleBuf(buf []byte, additionalNeeded int) ([]byte, bool) {
	n := len(buf) * 2
	if n < len(buf)+additionalNeeded {
		n = len(buf) + additionalNeeded
	}
	grown := make([]byte, n)
	copy(grown, buf)
	return grown, true
}

// addEncodeField parses one key=type:value field and appends it to w.
func addEncodeField(w *jsonb.Writer, field string) error {
	key, rest, ok := strings.Cut(field, "=")
	if !ok {
		return fmt.Errorf("encode: malformed --set %q, want key=type:value", field)
	}
	typ, value, ok := strings.Cut(rest, ":")
	if !ok {
		return fmt.Errorf("encode: malformed --set %q, want key=type:value", field)
	}

	switch typ {
	case "null":
		w.AddNullToObject(key)
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("encode: %s: %w", key, err)
		}
		w.AddBoolToObject(key, b)
	case "string":
		w.AddStringToObject(key, value)
	case "int":
		n, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return fmt.Errorf("encode: %s: %w", key, err)
		}
		w.AddInt64ToObject(key, n)
	case "uint":
		n, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return fmt.Errorf("encode: %s: %w", key, err)
		}
		w.AddUint64ToObject(key, n)
	case "float":
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("encode: %s: %w", key, err)
		}
		w.AddFloatToObject(key, float32(f))
	case "double":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("encode: %s: %w", key, err)
		}
		w.AddDoubleToObject(key, f)
	case "bin":
		b, err := hex.DecodeString(value)
		if err != nil {
			return fmt.Errorf("encode: %s: %w", key, err)
		}
		w.AddBinToObject(key, b, len(b))
	default:
		return fmt.Errorf("encode: unknown type %q for key %q", typ, key)
	}
	return nil
}
