// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kazwalker/jsonwire/pkg/notecard"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Flush a stuck link by issuing a reset request",
	Long: `Send a 25-byte, newline-only reset request and discard any response.

Useful after a previous transaction was interrupted mid-transmit,
leaving the peripheral expecting the rest of a request it will never
receive.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, info, closeFn, err := OpenLink()
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Fprintf(os.Stderr, "Connection: %s\n", info)

	client := notecard.NewClient(ctx)
	if err := client.Reset(); err != nil {
		return err
	}
	fmt.Println("reset OK")
	return nil
}
