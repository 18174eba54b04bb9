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
		Use:          "flowrank",
		Short:        "Rank n8n automation workflows by popularity across YouTube and the community forum",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(workflowsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func ingestCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run every configured ingestion job once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the result as JSON")
	return cmd
}

func workflowsCmd() *cobra.Command {
	var (
		jsonOutput bool
		platform   string
		country    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Show ranked workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflows(cmd.Context(), platform, country, limit, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&platform, "platform", "", "filter by platform (youtube, forum)")
	cmd.Flags().StringVar(&country, "country", "", "filter by country code (e.g., US)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max workflows to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
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
		Short: "Start daemon with scheduled ingestion and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
