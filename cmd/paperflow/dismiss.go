// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperflow/internal/dismiss"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Manage the project's dismissed papers and notifications",
	Long: `Dismiss permanently hides papers from the project's discovery results
or silences a channel's ingestion notification. Dismissals persist across
invocations and apply to every channel in the project.`,
}

var dismissPaperCmd = &cobra.Command{
	Use:   "paper <paper-id> [...]",
	Short: "Hide papers from all of the project's discovery results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDismissPaper,
}

var dismissNotificationCmd = &cobra.Command{
	Use:   "notification <channel> [...]",
	Short: "Silence a channel's ingestion notification and stop its polling",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDismissNotification,
}

var dismissListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the project's dismissed papers and notification channels",
	Args:  cobra.NoArgs,
	RunE:  runDismissList,
}

var dismissResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the project's dismissed sets",
	Args:  cobra.NoArgs,
	RunE:  runDismissReset,
}

func init() {
	dismissCmd.AddCommand(dismissPaperCmd)
	dismissCmd.AddCommand(dismissNotificationCmd)
	dismissCmd.AddCommand(dismissListCmd)
	dismissCmd.AddCommand(dismissResetCmd)

	rootCmd.AddCommand(dismissCmd)
}

func openDismissStore(cmd *cobra.Command) (*dismiss.Store, string, error) {
	cfg := coordinatorConfig(cmd)
	store, err := dismiss.NewStore(cfg.Storage)
	if err != nil {
		return nil, "", err
	}
	return store, cfg.Project, nil
}

func runDismissPaper(cmd *cobra.Command, args []string) error {
	store, project, err := openDismissStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, paperID := range args {
		if err := store.AddDismissedPaper(project, paperID); err != nil {
			return err
		}
	}
	fmt.Printf("Dismissed %d paper(s) in project %s\n", len(args), project)
	return nil
}

func runDismissNotification(cmd *cobra.Command, args []string) error {
	store, project, err := openDismissStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, channelID := range args {
		if err := store.AddDismissedNotification(project, channelID); err != nil {
			return err
		}
	}
	fmt.Printf("Dismissed notifications on %d channel(s) in project %s\n", len(args), project)
	return nil
}

func runDismissList(cmd *cobra.Command, args []string) error {
	store, project, err := openDismissStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	papers, err := store.DismissedPapers(project)
	if err != nil {
		return err
	}
	notifications, err := store.DismissedNotifications(project)
	if err != nil {
		return err
	}

	fmt.Printf("Project %s: %d dismissed paper(s), %d silenced channel(s)\n",
		project, len(papers), len(notifications))
	for _, id := range sortedKeys(papers) {
		fmt.Println("  paper:", id)
	}
	for _, id := range sortedKeys(notifications) {
		fmt.Println("  channel:", id)
	}
	return nil
}

func runDismissReset(cmd *cobra.Command, args []string) error {
	store, project, err := openDismissStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(project); err != nil {
		return err
	}
	fmt.Printf("Cleared dismissed sets for project %s\n", project)
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
