// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kazwalker/jsonwire/pkg/jsonb"
)

var decodeIn string

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Print a JSONB frame as an indented opcode tree",
	Long: `Parse a JSONB frame and print its structure, one record per line,
indented by nesting depth.

The frame is read from -i (raw bytes), or from stdin as a single line
of hex if -i is not given.`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeIn, "input", "i", "", "read raw frame bytes from this file instead of hex on stdin")
}

func runDecode(cmd *cobra.Command, args []string) error {
	frame, err := readFrame()
	if err != nil {
		return err
	}

	r := jsonb.NewReader()
	if !r.Parse(frame) {
		return fmt.Errorf("decode: not a valid JSONB frame")
	}
	printTree(r)
	return nil
}

func readFrame() ([]byte, error) {
	if decodeIn != "" {
		return os.ReadFile(decodeIn)
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("decode: reading stdin: %w", err)
	}
	return hex.DecodeString(strings.TrimSpace(string(raw)))
}

// printTree walks the frame's records in enumeration order, indenting
// by nesting depth so objects and arrays read as a tree.
func printTree(r *jsonb.Reader) {
	depth := 0
	for {
		rec, ok := r.EnumNext()
		if !ok {
			break
		}
		switch rec.Opcode {
		case jsonb.EndObject, jsonb.EndArray:
			depth--
		}
		indent := strings.Repeat("  ", depth)
		fmt.Println(indent + describeRecord(rec))
		switch rec.Opcode {
		case jsonb.BeginObject, jsonb.BeginArray:
			depth++
		}
	}
}

func describeRecord(rec jsonb.Record) string {
	label := rec.Opcode.String()
	if rec.HasName {
		label = fmt.Sprintf("%s: %s", rec.Name, label)
	}
	switch rec.Opcode {
	case jsonb.String:
		return fmt.Sprintf("%s %q", label, jsonb.GetString(rec, true))
	case jsonb.True, jsonb.False:
		return fmt.Sprintf("%s %v", label, jsonb.GetBool(rec, true))
	case jsonb.Int8, jsonb.Int16, jsonb.Int32, jsonb.Int64:
		return fmt.Sprintf("%s %d", label, jsonb.GetInt64(rec, true))
	case jsonb.Uint8, jsonb.Uint16, jsonb.Uint32, jsonb.Uint64:
		return fmt.Sprintf("%s %d", label, jsonb.GetUint64(rec, true))
	case jsonb.Float:
		return fmt.Sprintf("%s %g", label, jsonb.GetFloat(rec, true))
	case jsonb.Double:
		return fmt.Sprintf("%s %g", label, jsonb.GetDouble(rec, true))
	case jsonb.Bin8, jsonb.Bin16, jsonb.Bin24, jsonb.Bin32:
		return fmt.Sprintf("%s %d bytes", label, len(rec.Value))
	default:
		return label
	}
}
