// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperflow/internal/api"
	"github.com/pdiddy/paperflow/internal/discovery"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore <query-file>",
	Short: "Deep-rescore saved search results against a research context",
	Long: `Rescore sends the papers from a saved query file to the backend's
deep-rescore endpoint, which re-ranks them against a research context.
The backend caps each request at 20 candidates; larger files are
truncated. The re-ranked list replaces the file's papers.`,
	Args: cobra.ExactArgs(1),
	RunE: runRescore,
}

func init() {
	rescoreCmd.Flags().String("context", "", "research context to rescore against")
	rescoreCmd.Flags().Bool("json", false, "output results as JSON")
	rescoreCmd.Flags().Bool("write", false, "write the re-ranked list back to the query file")

	rootCmd.AddCommand(rescoreCmd)
}

func runRescore(cmd *cobra.Command, args []string) error {
	cfg := coordinatorConfig(cmd)
	if cfg.Discovery.RescoreEndpoint == "" {
		return fmt.Errorf("rescore endpoint not configured: set discovery.rescore_endpoint in paperflow.yaml")
	}

	qf, err := discovery.ReadQueryFile(args[0])
	if err != nil {
		return err
	}
	if len(qf.Papers) == 0 {
		return fmt.Errorf("query file %s has no papers to rescore", args[0])
	}

	researchContext, _ := cmd.Flags().GetString("context")

	client := api.NewClient(nil, cfg.Discovery, cfg.Ingest)
	result, err := client.Rescore(cmd.Context(), api.RescoreRequest{
		Mode:       qf.Query.Mode,
		Context:    researchContext,
		Candidates: qf.Papers,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Rescored %d papers (%s)\n", result.Rescored, result.Method)

	snap := discovery.Snapshot{Query: qf.Query.FreeText, Papers: result.Items}
	if write, _ := cmd.Flags().GetBool("write"); write {
		if err := discovery.WriteQueryFile(args[0], qf.Query.ToRequest(), snap); err != nil {
			return err
		}
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return discovery.FormatJSON(snap, os.Stdout)
	}
	discovery.FormatTable(snap, os.Stdout)
	return nil
}
