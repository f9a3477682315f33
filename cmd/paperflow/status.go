// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperflow/internal/api"
)

var statusCmd = &cobra.Command{
	Use:   "status <reference-id> [...]",
	Short: "Query backend ingestion status for references",
	Long: `Status asks the backend for the current ingestion status of one or
more reference IDs and prints them. The backend is the source of truth;
this is a one-shot query with no local state.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "output statuses as JSON")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := coordinatorConfig(cmd)
	if cfg.Ingest.StatusEndpoint == "" {
		return fmt.Errorf("ingestion status endpoint not configured: set ingest.status_endpoint in paperflow.yaml")
	}

	client := api.NewClient(nil, cfg.Discovery, cfg.Ingest)
	statuses, err := client.IngestionStatuses(cmd.Context(), args)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	refs := make([]string, 0, len(statuses))
	for ref := range statuses {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	for _, ref := range refs {
		fmt.Fprintf(os.Stdout, "%-30s  %s\n", ref, statuses[ref])
	}
	for _, ref := range args {
		if _, ok := statuses[ref]; !ok {
			fmt.Fprintf(os.Stderr, "%-30s  unknown to backend\n", strings.TrimSpace(ref))
		}
	}
	return nil
}
