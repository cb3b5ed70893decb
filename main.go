// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker
//
// jsonwire - a CLI for building, inspecting, and exchanging JSONB
// frames over a SOI2C link.

package main

import (
	"fmt"
	"os"

	"github.com/kazwalker/jsonwire/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
