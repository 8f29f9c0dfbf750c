package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"sift/internal/api"
	"sift/internal/config"
	"sift/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			status, daemonErr := fetchDaemonStatus(cfg)
			if daemonErr != nil {
				// Daemon unreachable; report queue state from the store.
				var fallbackErr error
				status, fallbackErr = offlineStatus(cmd, ctx)
				if fallbackErr != nil {
					return fallbackErr
				}
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
			if status.Running {
				fmt.Fprintln(out, renderStatusLine("Running", statusOK, fmt.Sprintf("pid %d", status.PID), colorize))
				fmt.Fprintln(out, renderStatusLine("API", statusInfo, cfg.Paths.APIBind, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Running", statusWarn, "daemon not reachable", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.QueueDBPath, colorize))
			if status.Workflow.LastError != "" {
				fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Queue", colorize))
			printQueueStats(out, status.Workflow.QueueStats)

			if len(status.Workflow.StageHealth) > 0 {
				fmt.Fprintln(out, renderSectionHeader("Stages", colorize))
				for _, health := range status.Workflow.StageHealth {
					kind := statusOK
					if !health.Ready {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(health.Name, kind, health.Detail, colorize))
				}
			}
			return nil
		},
	}
}

// fetchDaemonStatus queries the daemon's HTTP API using the configured bind
// address and bearer token.
func fetchDaemonStatus(cfg *config.Config) (*api.DaemonStatus, error) {
	if cfg.Paths.APIBind == "" {
		return nil, fmt.Errorf("no API bind address configured")
	}

	req, err := http.NewRequest(http.MethodGet, "http://"+cfg.Paths.APIBind+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if cfg.Paths.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Paths.APIToken)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon status: unexpected response %d", resp.StatusCode)
	}

	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}

func offlineStatus(cmd *cobra.Command, ctx *commandContext) (*api.DaemonStatus, error) {
	var status *api.DaemonStatus
	err := ctx.withStore(func(store *queue.Store) error {
		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		status = &api.DaemonStatus{
			QueueDBPath: store.Path(),
			Workflow: api.WorkflowStatus{
				QueueStats: api.MergeQueueStats(stats),
			},
		}
		return nil
	})
	return status, err
}

func printQueueStats(out io.Writer, stats map[string]int) {
	total := 0
	for _, count := range stats {
		total += count
	}
	if total == 0 {
		fmt.Fprintln(out, statusIndent+"Queue is empty")
		return
	}

	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return statusDisplayRank(keys[i]) < statusDisplayRank(keys[j])
	})
	for _, key := range keys {
		fmt.Fprintf(out, "%s%-18s %d\n", statusIndent, key+":", stats[key])
	}
	fmt.Fprintf(out, "%s%-18s %d\n", statusIndent, "total:", total)
}

// statusDisplayRank orders stats output by pipeline position instead of
// alphabetically.
func statusDisplayRank(value string) int {
	for i, status := range queue.AllStatuses() {
		if string(status) == value {
			return i
		}
	}
	return len(queue.AllStatuses())
}
