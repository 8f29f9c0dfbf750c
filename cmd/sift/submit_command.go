package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/api"
	"sift/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <messageID>...",
		Short: "Submit mail messages for triage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					messageID := strings.TrimSpace(arg)
					if messageID == "" {
						return fmt.Errorf("message id must not be empty")
					}
					item, created, err := store.NewMessage(cmd.Context(), messageID)
					if err != nil {
						return err
					}
					if ctx.JSONMode() {
						if err := writeJSON(cmd, api.SubmitResponse{Item: api.FromQueueItem(item), Created: created}); err != nil {
							return err
						}
						continue
					}
					if created {
						fmt.Fprintf(out, "Queued message %s as workflow %s\n", messageID, item.WorkflowID)
					} else {
						fmt.Fprintf(out, "Message %s already queued as workflow %s (%s)\n", messageID, item.WorkflowID, item.Status)
					}
				}
				return nil
			})
		},
	}
}
