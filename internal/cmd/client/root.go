package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the Logos client.
// It registers the entry, tail, admin, blob, export and archive
// command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "logos",
		Short: "Logos client commands",
	}
	root.AddCommand(
		NewEntryCommand(baseURL),
		NewTailCommand(baseURL),
		NewAdminCommand(baseURL),
		NewBlobCommand(baseURL),
		NewExportCommand(baseURL),
		NewArchiveCommand(),
	)
	return root
}
