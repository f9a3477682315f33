// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperflow/internal/api"
	"github.com/pdiddy/paperflow/internal/discovery"
	"github.com/pdiddy/paperflow/internal/ingest"
	"github.com/pdiddy/paperflow/pkg/types"
)

var attachCmd = &cobra.Command{
	Use:   "attach <paper-id>=<reference-id> [...]",
	Short: "Track ingestion of papers attached to a channel",
	Long: `Attach records that papers were handed to the backend for ingestion
and polls the backend until each one reaches a terminal status: success,
failed, or no PDF available. Each argument pairs the paper's discovery ID
with the backend reference ID returned when it was attached.

Without --wait a single status poll runs and the current states print.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().String("channel", "default", "channel the papers belong to")
	attachCmd.Flags().Bool("wait", false, "poll until all papers reach a terminal status")
	attachCmd.Flags().Duration("wait-timeout", 10*time.Minute, "give up waiting after this long")

	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	cfg := coordinatorConfig(cmd)
	if cfg.Ingest.StatusEndpoint == "" {
		return fmt.Errorf("ingestion status endpoint not configured: set ingest.status_endpoint in paperflow.yaml")
	}

	channelID, _ := cmd.Flags().GetString("channel")

	tracker := ingest.NewTracker()
	for _, arg := range args {
		paperID, referenceID, err := splitPair(arg)
		if err != nil {
			return err
		}
		tracker.Attach(channelID, paperID, referenceID)
	}

	client := api.NewClient(nil, cfg.Discovery, cfg.Ingest)
	poller := ingest.NewPoller(cfg.Ingest, client, tracker, nil, commandLogger(cmd))
	defer poller.Close()

	ctx := cmd.Context()
	wait, _ := cmd.Flags().GetBool("wait")
	if wait {
		timeout, _ := cmd.Flags().GetDuration("wait-timeout")
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := waitForTerminal(waitCtx, poller, tracker, channelID, cfg.Ingest.PollInterval); err != nil {
			printIngestion(tracker, channelID)
			return err
		}
	} else {
		poller.RefreshNow(ctx, channelID)
	}

	printIngestion(tracker, channelID)
	return nil
}

// waitForTerminal polls until every entry leaves the pending and uploading
// states or the context expires.
func waitForTerminal(ctx context.Context, poller *ingest.Poller, tracker *ingest.Tracker, channelID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		poller.RefreshNow(ctx, channelID)
		if allTerminal(tracker, channelID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for ingestion: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func allTerminal(tracker *ingest.Tracker, channelID string) bool {
	if !tracker.Summary(channelID).Verified {
		return false
	}
	for _, state := range tracker.States(channelID) {
		switch state.Status {
		case types.IngestPending, types.IngestUploading:
			return false
		}
	}
	return true
}

func printIngestion(tracker *ingest.Tracker, channelID string) {
	for _, state := range tracker.States(channelID) {
		marker := " "
		if state.IsAdding {
			marker = "*"
		}
		fmt.Fprintf(os.Stdout, "%s %-30s  %-12s  %s\n", marker, state.PaperID, state.Status, state.ReferenceID)
	}
	discovery.FormatSummary(tracker.Summary(channelID), os.Stdout)
}

func splitPair(arg string) (paperID, referenceID string, err error) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == '=' {
			if i == 0 || i == len(arg)-1 {
				break
			}
			return arg[:i], arg[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("invalid pair %q: expected <paper-id>=<reference-id>", arg)
}
