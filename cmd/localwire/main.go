package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "localwire",
		Short: "Curate hyper-local news from RSS feeds and scraped pages",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(aggregateCmd())
	root.AddCommand(articlesCmd())
	root.AddCommand(sourcesCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(dedupPurgeCmd())

	return root
}

func aggregateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run one full pipeline cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "bypass the watermark and reprocess the full corpus")
	return cmd
}

func articlesCmd() *cobra.Command {
	var (
		rejected   bool
		category   string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List persisted articles with audit fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArticles(rejected, category, limit, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&rejected, "rejected", false, "show only rejected articles")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().IntVar(&limit, "limit", 50, "max articles to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show per-source fetch state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources()
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with periodic cycles and the review API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func dedupPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup-purge",
		Short: "Purge historical duplicate article rows, keeping the highest id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDedupPurge()
		},
	}
}
