package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/paperclip/internal/app"
	"github.com/dmitrijs2005/paperclip/internal/cli"
	"github.com/dmitrijs2005/paperclip/internal/config"
	"github.com/dmitrijs2005/paperclip/internal/flagx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	args := os.Args[1:]
	cfg, err := config.LoadConfig(args)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := app.WithSignals(context.Background())
	defer cancel()

	root := cli.NewRootCmd(func(ctx context.Context) (cli.Env, error) {
		a, err := app.NewApp(ctx, cfg, os.Stderr)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	root.SetArgs(flagx.StripArgs(args, config.FlagNames()))

	if err := root.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
