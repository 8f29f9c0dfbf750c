package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints v as two-space indented JSON on the command's output.
// Escaping is left off since the output goes to terminals and pipes.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
