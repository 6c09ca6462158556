package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/courserag/internal/app"
	"github.com/0xcro3dile/courserag/internal/infrastructure/config"
)

func main() {
	_ = godotenv.Load()

	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var cfgPath string
	var root = &cobra.Command{
		Use:          "courserag",
		Short:        "Question answering over course materials",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./courserag.yaml or ~/.config/courserag/courserag.yaml)")

	load := func() (*config.Config, error) { return config.Load(cfgPath) }
	root.AddCommand(
		serveCMD(load),
		ingestCMD(load),
		askCMD(load),
		chatCMD(load),
		configCMD(),
	)
	return root
}

type configLoader func() (*config.Config, error)

// openApp loads configuration and wires the application.
func openApp(ctx context.Context, load configLoader) (*app.App, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
