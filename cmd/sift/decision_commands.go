package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/api"
	"sift/internal/approval"
	"sift/internal/queue"
)

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "approve <workflowID>",
		Short: "Approve a workflow awaiting a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecision(cmd, ctx, args[0], queue.DecisionApprove, actor, "")
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "Name recorded in the approval audit trail")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "reject <workflowID>",
		Short: "Reject a workflow awaiting a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecision(cmd, ctx, args[0], queue.DecisionReject, actor, "")
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "Name recorded in the approval audit trail")
	return cmd
}

func newRedirectCommand(ctx *commandContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "redirect <workflowID> <folder>",
		Short: "Approve a workflow into a different folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := strings.TrimSpace(args[1])
			if folder == "" {
				return fmt.Errorf("redirect folder must not be empty")
			}
			return runDecision(cmd, ctx, args[0], queue.DecisionRedirect, actor, folder)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "Name recorded in the approval audit trail")
	return cmd
}

func runDecision(cmd *cobra.Command, ctx *commandContext, workflowID string, decision queue.Decision, actor, folder string) error {
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return fmt.Errorf("workflow id must not be empty")
	}

	return ctx.withGate(func(gate *approval.Gate, _ *queue.Store) error {
		item, err := gate.DecideWorkflow(cmd.Context(), workflowID, decision, actor, folder)
		if err != nil {
			return err
		}
		if ctx.JSONMode() {
			return writeJSON(cmd, api.DecisionResponse{Item: decisionItem(item)})
		}

		out := cmd.OutOrStdout()
		switch decision {
		case queue.DecisionReject:
			fmt.Fprintf(out, "Rejected workflow %s\n", item.WorkflowID)
		case queue.DecisionRedirect:
			fmt.Fprintf(out, "Approved workflow %s into %s\n", item.WorkflowID, item.DecisionFolder)
		default:
			fmt.Fprintf(out, "Approved workflow %s into %s\n", item.WorkflowID, item.TargetFolder())
		}
		return nil
	})
}

func decisionItem(item *queue.Item) *api.QueueItem {
	if item == nil {
		return nil
	}
	converted := api.FromQueueItem(item)
	return &converted
}
