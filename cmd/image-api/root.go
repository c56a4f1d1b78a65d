package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "image-api",
		Short: "Authenticated HTTP API for resizing, rotating, filtering and converting images",
		Long: "image-api serves single image operations and validated multi-step pipelines " +
			"over HTTP. Every operation request is authenticated with a bearer token and " +
			"recorded in the request log.\n\n" +
			"Configuration is read from --config, ./config.yaml, .env and IMAGE_API_* " +
			"environment variables, in increasing order of precedence.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(&configPath), newVersionCmd())
	return root
}
