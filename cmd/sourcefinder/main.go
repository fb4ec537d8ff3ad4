package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sourcefinder/config"
	srv "sourcefinder/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "sourcefinder"}

	var configPath string
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if serveAddr == "" {
				serveAddr = os.Getenv("SOURCEFINDER_HTTP_ADDR")
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			s, err := srv.New(cfg)
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to config file (JSON)")
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	root.AddCommand(serve)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
