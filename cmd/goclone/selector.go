package main

import (
	"fmt"

	"github.com/MrEthical07/goClone/selector"
	"github.com/spf13/cobra"
)

func selectorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selector SIGNATURE...",
		Short: "Print the 4-byte selector of canonical signatures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, sig := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", selector.FromSignature(sig), sig)
			}
			return nil
		},
	}
}
