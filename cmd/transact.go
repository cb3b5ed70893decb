// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kazwalker/jsonwire/pkg/jsonb"
	"github.com/kazwalker/jsonwire/pkg/notecard"
)

var transactFields []string

var transactCmd = &cobra.Command{
	Use:   "transact",
	Short: "Send one request and print the decoded response",
	Long: `Build a JSONB request object from --set key=type:value pairs (see
"jsonwire encode --help" for the type grammar), send it over the
configured connection, and print the response as an indented opcode
tree.`,
	RunE: runTransact,
}

func init() {
	rootCmd.AddCommand(transactCmd)
	transactCmd.Flags().StringArrayVar(&transactFields, "set", nil, "key=type:value request member to add (repeatable)")
}

func runTransact(cmd *cobra.Command, args []string) error {
	ctx, info, closeFn, err := OpenLink()
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Fprintf(os.Stderr, "Connection: %s\n", info)

	var buildErr error
	client := notecard.NewClient(ctx)
	r, err := client.Request(func(w *jsonb.Writer) {
		for _, field := range transactFields {
			if buildErr == nil {
				buildErr = addEncodeField(w, field)
			}
		}
	})
	if buildErr != nil {
		return buildErr
	}
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("transact: no response")
	}
	printTree(r)
	return nil
}
