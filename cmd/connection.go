// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/kazwalker/jsonwire/pkg/soi2c"
)

// GetPassword retrieves a WebSocket Basic-auth password from the
// environment, falling back to an interactive masked prompt.
func GetPassword() (string, error) {
	if pw := os.Getenv("JSONWIRE_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}
	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenLink opens either a serial or WebSocket transport based on the
// root command's persistent flags, and wires it into a fresh
// soi2c.Context. The returned closer must be closed by the caller once
// the context is no longer needed.
func OpenLink() (ctx *soi2c.Context, info string, closeFn func() error, err error) {
	ctx = &soi2c.Context{Addr: i2cAddr}

	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			password, err = GetPassword()
			if err != nil {
				return nil, "", nil, err
			}
		}
		transport, err := soi2c.DialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", nil, err
		}
		transport.Wire(ctx)
		return ctx, fmt.Sprintf("WebSocket: %s", wsURL), transport.Close, nil
	}

	if portName != "" {
		transport, err := soi2c.OpenSerial(portName, baudRate)
		if err != nil {
			return nil, "", nil, err
		}
		transport.Wire(ctx)
		return ctx, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), transport.Close, nil
	}

	return nil, "", nil, fmt.Errorf("either --port or --url must be specified")
}
