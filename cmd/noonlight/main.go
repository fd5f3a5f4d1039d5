// Command noonlight creates Noonlight alarms and verification tasks from
// YAML files.
//
//	noonlight [-config noonlight.yaml] [-env .env] alarm -f scenario.yaml
//	noonlight [-config noonlight.yaml] [-env .env] task -f task.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IceBotYT/noonlight/internal/config"
	"github.com/IceBotYT/noonlight/internal/logger"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage: noonlight [-config file] [-env file] <alarm|task> -f file")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("noonlight", flag.ContinueOnError)
	configFile := fs.String("config", "", "YAML config file")
	envFile := fs.String("env", ".env", "dotenv file, skipped when missing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	command := fs.Arg(0)
	if command != "alarm" && command != "task" {
		return fmt.Errorf("unknown command %q: %w", command, errUsage)
	}

	sub := flag.NewFlagSet(command, flag.ContinueOnError)
	input := sub.String("f", "", "scenario or task file")
	if err := sub.Parse(fs.Args()[1:]); err != nil {
		return err
	}
	if *input == "" {
		return errUsage
	}

	cfg, err := config.Load(*envFile, *configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format,
		zap.String("service_name", "noonlight"),
		zap.String("command", command),
		zap.Bool("sandbox", cfg.Noonlight.Sandbox),
	)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	r := &runner{
		token:   cfg.Noonlight.ServerToken,
		sandbox: cfg.Noonlight.Sandbox,
		opts:    cfg.Options(log),
		logger:  log,
		out:     stdout,
		now:     time.Now,
	}

	switch command {
	case "alarm":
		var sc alarmScenario
		if err = readYAML(*input, &sc); err == nil {
			err = r.alarm(ctx, sc)
		}
	case "task":
		var f taskFile
		if err = readYAML(*input, &f); err == nil {
			err = r.task(ctx, f)
		}
	}
	if err != nil {
		log.Error("command failed", zap.String("file", *input), zap.Error(err))
	}
	return err
}
