// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// SOI2C address flag, shared by transact/reset/watch
	i2cAddr uint16
)

var rootCmd = &cobra.Command{
	Use:   "jsonwire",
	Short: "JSONB/COBS/SOI2C wire protocol toolkit",
	Long: `jsonwire - a CLI for building, inspecting, and exchanging JSONB frames
over a SOI2C link.

Provides commands for hand-encoding and decoding frames, driving a live
transaction against a serial or WebSocket-bridged peripheral, resetting a
stuck link, and watching a stream of frames scroll by.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the JSONWIRE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().Uint16Var(&i2cAddr, "addr", 0, "I2C address (0 = default, 0x17)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
