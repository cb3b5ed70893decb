// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker

package soi2c

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialTransport adapts an open serial port into the TransmitFn/
// ReceiveFn/DelayFn triple a Context needs. A serial link carries one
// device per port, so addr is accepted (to satisfy the callback
// signatures) but otherwise ignored.
type SerialTransport struct {
	Port serial.Port
}

// OpenSerial opens portName at baudRate with the 8N1 framing the
// Notecard's UART-over-USB bridge expects, and returns a ready-to-use
// SerialTransport.
func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("soi2c: open serial port %s: %w", portName, err)
	}
	return &SerialTransport{Port: port}, nil
}

// Close closes the underlying serial port.
func (s *SerialTransport) Close() error {
	return s.Port.Close()
}

// Transmit writes buf in full, returning an error on any short write
// or I/O failure.
func (s *SerialTransport) Transmit(_ uint16, buf []byte) error {
	n, err := s.Port.Write(buf)
	if err != nil {
		return fmt.Errorf("soi2c: serial write: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("soi2c: serial write: short write %d of %d bytes", n, len(buf))
	}
	return nil
}

// Receive fills buf completely, looping over short reads the way a
// serial port commonly delivers them.
func (s *SerialTransport) Receive(_ uint16, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := s.Port.Read(buf[read:])
		if err != nil {
			return fmt.Errorf("soi2c: serial read: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("soi2c: serial read: no data and no error")
		}
		read += n
	}
	return nil
}

// Delay sleeps for ms milliseconds.
func (s *SerialTransport) Delay(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Wire builds a Context using this transport's Transmit/Receive/Delay
// methods, leaving Addr and Grow for the caller to set.
func (s *SerialTransport) Wire(ctx *Context) {
	ctx.Tx = s.Transmit
	ctx.Rx = s.Receive
	ctx.Delay = s.Delay
}
