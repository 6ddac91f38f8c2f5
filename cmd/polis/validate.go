package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-oss/internal/composition"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <composition-file>",
		Short: "Parse and validate a composition file, reporting every diagnostic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			comp, err := composition.Load(path)
			if err != nil {
				if jsonOutput {
					return printJSON(map[string]any{"valid": false, "error": err.Error()})
				}
				return err
			}
			if jsonOutput {
				return printJSON(map[string]any{"valid": true, "nodes": len(comp.Architecture)})
			}
			fmt.Printf("%s: OK (%d nodes)\n", path, len(comp.Architecture))
			return nil
		},
	}
	return cmd
}
