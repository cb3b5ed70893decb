// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker

package soi2c

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport adapts a WebSocket-bridged link (a relay that
// forwards raw bytes as binary WebSocket messages) into the
// TransmitFn/ReceiveFn/DelayFn triple a Context needs. As with
// SerialTransport, addr is accepted but unused: the bridge fronts one
// device.
type WebSocketTransport struct {
	conn    *websocket.Conn
	pending []byte
}

// DialWebSocket opens a WebSocket connection to wsURL, optionally
// authenticating with HTTP Basic auth, and returns a ready-to-use
// WebSocketTransport. skipSSLVerify disables certificate verification
// for wss:// connections to self-signed bridges.
func DialWebSocket(wsURL, username, password string, skipSSLVerify bool) (*WebSocketTransport, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("soi2c: invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("soi2c: unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+creds)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("soi2c: websocket connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("soi2c: websocket connect failed: %w", err)
	}
	return &WebSocketTransport{conn: conn}, nil
}

// Close closes the underlying WebSocket connection.
func (w *WebSocketTransport) Close() error {
	return w.conn.Close()
}

// Transmit sends buf as one binary WebSocket message.
func (w *WebSocketTransport) Transmit(_ uint16, buf []byte) error {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return fmt.Errorf("soi2c: websocket write: %w", err)
	}
	return nil
}

// Receive fills buf from a rolling buffer of binary WebSocket
// messages, reading another message whenever the current one is
// exhausted.
func (w *WebSocketTransport) Receive(_ uint16, buf []byte) error {
	filled := 0
	for filled < len(buf) {
		if len(w.pending) == 0 {
			messageType, data, err := w.conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("soi2c: websocket read: %w", err)
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			w.pending = data
		}
		n := copy(buf[filled:], w.pending)
		w.pending = w.pending[n:]
		filled += n
	}
	return nil
}

// Delay sleeps for ms milliseconds.
func (w *WebSocketTransport) Delay(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Wire builds a Context using this transport's Transmit/Receive/Delay
// methods, leaving Addr and Grow for the caller to set.
func (w *WebSocketTransport) Wire(ctx *Context) {
	ctx.Tx = w.Transmit
	ctx.Rx = w.Receive
	ctx.Delay = w.Delay
}
