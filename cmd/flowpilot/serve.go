package main

import (
	"log"

	"github.com/spf13/cobra"

	srv "github.com/mohammad-safakhou/flowpilot/internal/server"
)

func serveCMD(load configLoader) *cobra.Command {
	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			if cfg.General.Verbose() {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
			if cfg.LLM.APIKey == "" {
				log.Printf("no LLM API key configured; every plan will use the fallback workflow")
			}
			return srv.Run(cmd.Context(), cfg, version)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	return serve
}
