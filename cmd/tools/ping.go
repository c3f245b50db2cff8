package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	formakv "github.com/lychee-technology/formakv"
	"github.com/lychee-technology/formakv/factory"
)

// probeKey is read but never written.
const probeKey = "formakv:ping"

func runPing(args []string) error {
	flags := flag.NewFlagSet("ping", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	configPath := flags.String("config", "", "path to config file")
	backend := flags.String("backend", "", "override store.backend (memory, redis, postgres)")
	timeout := flags.Duration("timeout", 5*time.Second, "overall timeout")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := formakv.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	elapsed, err := pingStore(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("%s store OK (%s)\n", cfg.Store.Backend, elapsed.Round(time.Microsecond))
	return nil
}

// pingStore opens the configured store and issues one read against it.
func pingStore(ctx context.Context, cfg *formakv.Config) (time.Duration, error) {
	store, err := factory.NewStore(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	start := time.Now()
	if _, err := store.Exists(ctx, probeKey); err != nil {
		return 0, fmt.Errorf("probe %s: %w", probeKey, err)
	}
	return time.Since(start), nil
}
