// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperflow/internal/api"
	"github.com/pdiddy/paperflow/internal/discovery"
	"github.com/pdiddy/paperflow/internal/dismiss"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [query]",
	Short: "Stream a paper search for a channel",
	Long: `Discover runs a streaming search against the discovery backend and
prints the channel's merged, deduplicated results. The search mode is
inferred from the flags: a free-text query, a research topic (--topic),
or similarity to a known paper (--similar).

Papers dismissed in this project are filtered from the output. Use --more
to widen the previous search instead of starting a new one, and --save to
snapshot the results to a YAML file for later reloading.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().String("channel", "default", "channel the search belongs to")
	discoverCmd.Flags().String("topic", "", "search by research topic instead of free text")
	discoverCmd.Flags().String("similar", "", "search for papers similar to this paper ID")
	discoverCmd.Flags().Bool("use-content", false, "use full paper content for similarity search")
	discoverCmd.Flags().String("sources", "", "comma-separated source list (overrides config)")
	discoverCmd.Flags().Int("max-results", 0, "maximum number of results (0 = use config)")
	discoverCmd.Flags().Bool("more", false, "widen the previous search on this channel")
	discoverCmd.Flags().Bool("json", false, "output results as JSON")
	discoverCmd.Flags().String("save", "", "save results to a YAML query file")
	discoverCmd.Flags().String("load", "", "print a previously saved query file instead of searching")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if loadPath, _ := cmd.Flags().GetString("load"); loadPath != "" {
		return printQueryFile(loadPath, jsonOutput)
	}

	cfg := coordinatorConfig(cmd)
	if cfg.Discovery.Endpoint == "" {
		return fmt.Errorf("discovery endpoint not configured: set discovery.endpoint in paperflow.yaml")
	}

	req, err := discoverRequest(cmd, args)
	if err != nil {
		return err
	}

	store, err := dismiss.NewStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := commandLogger(cmd)
	client := api.NewClient(nil, cfg.Discovery, cfg.Ingest)
	coord := discovery.NewCoordinator(cfg, client, store, logger)
	defer coord.Close()

	channelID, _ := cmd.Flags().GetString("channel")
	loadMore, _ := cmd.Flags().GetBool("more")

	settled := make(chan discovery.Snapshot, 1)
	unsubscribe := coord.Subscribe(channelID, func(s discovery.Snapshot) {
		if !s.IsSearching && s.Notification != "" {
			select {
			case settled <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	ctx := cmd.Context()
	if loadMore {
		// Seed the channel's last request so load-more has something to widen.
		if _, err := coord.StartSearch(ctx, channelID, req); err != nil {
			return err
		}
		<-settled
		if _, err := coord.LoadMore(ctx, channelID); err != nil {
			return err
		}
	} else {
		if _, err := coord.StartSearch(ctx, channelID, req); err != nil {
			return err
		}
	}

	snap := <-settled
	if snap.Notification != "" && !strings.HasPrefix(snap.Notification, "Found ") {
		return fmt.Errorf("search failed: %s", snap.Notification)
	}

	if savePath, _ := cmd.Flags().GetString("save"); savePath != "" {
		if err := discovery.WriteQueryFile(savePath, req, snap); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %d papers to %s\n", len(snap.Papers), savePath)
	}

	if jsonOutput {
		return discovery.FormatJSON(snap, os.Stdout)
	}
	discovery.FormatTable(snap, os.Stdout)
	return nil
}

// discoverRequest builds the search request from flags and positional
// arguments. Exactly one search mode must be selected.
func discoverRequest(cmd *cobra.Command, args []string) (api.SearchRequest, error) {
	topic, _ := cmd.Flags().GetString("topic")
	similar, _ := cmd.Flags().GetString("similar")
	useContent, _ := cmd.Flags().GetBool("use-content")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	query := strings.Join(args, " ")

	var req api.SearchRequest
	switch {
	case query != "" && topic == "" && similar == "":
		req = api.SearchRequest{Mode: api.ModeQuery, Query: query}
	case topic != "" && query == "" && similar == "":
		req = api.SearchRequest{Mode: api.ModeTopic, ResearchTopic: topic}
	case similar != "" && query == "" && topic == "":
		req = api.SearchRequest{Mode: api.ModeSimilar, PaperID: similar, UseContent: useContent}
	default:
		return api.SearchRequest{}, fmt.Errorf("provide exactly one of: a query, --topic, or --similar")
	}

	req.MaxResults = maxResults
	if sources, _ := cmd.Flags().GetString("sources"); sources != "" {
		req.Sources = strings.Split(sources, ",")
	}
	return req, nil
}

func printQueryFile(path string, jsonOutput bool) error {
	qf, err := discovery.ReadQueryFile(path)
	if err != nil {
		return err
	}
	snap := discovery.Snapshot{
		Query:          qf.Query.FreeText,
		Papers:         qf.Papers,
		SearchDuration: qf.Summary.Elapsed,
	}
	if jsonOutput {
		return discovery.FormatJSON(snap, os.Stdout)
	}
	discovery.FormatTable(snap, os.Stdout)
	return nil
}
