package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"roomsync/app"
	"roomsync/config"
	"roomsync/logging"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "roomsync",
		Short: "Trading room sync daemon",
		Long: "roomsync keeps a live local mirror of trading room state (alerts, trade plan,\n" +
			"trades, stats, weekly video) by merging platform REST snapshots with the\n" +
			"realtime websocket feed, and re-serves it to dashboards over HTTP and SSE.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadFromEnv()
			log := logging.NewLogger(cfg.LogLevel)
			return app.New(cfg, log).Start()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("roomsync " + version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
