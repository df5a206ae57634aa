package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/jacentio/grove/backend/badgerkv"
	"github.com/jacentio/grove/backend/dynamo"
	"github.com/jacentio/grove/backend/memory"
	"github.com/jacentio/grove/internal/config"
	"github.com/jacentio/grove/store"
)

// env is what every command needs: the loaded config, a logger and an
// open backend.
type env struct {
	config  config.Config
	logger  *slog.Logger
	backend store.Backend
	close   func() error
}

// setup loads the config, applies flag overrides and opens the backend.
func setup(ctx context.Context, cmd *cobra.Command, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	backend, closeFn, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &env{
		config:  cfg,
		logger:  logger,
		backend: backend,
		close:   closeFn,
	}, nil
}

// applyFlags overrides file values with the flags set on cmd.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.Kind, _ = flags.GetString("backend")
	}
	if flags.Changed("listen") {
		cfg.Listen, _ = flags.GetString("listen")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("root-id") {
		cfg.RootID, _ = flags.GetString("root-id")
	}
}

// openBackend opens the configured backend. The returned func releases it.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend.Kind {
	case config.BackendMemory:
		logger.Warn("using in-memory backend, data is lost on exit")
		return memory.New(), noop, nil

	case config.BackendBadger:
		b, err := badgerkv.Open(badgerkv.Config{
			Path:   cfg.Backend.BadgerPath,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open badger: %w", err)
		}
		return b, b.Close, nil

	case config.BackendDynamo:
		client, err := dynamoClient(ctx, cfg.Backend.Dynamo)
		if err != nil {
			return nil, nil, err
		}
		return dynamo.New(client, cfg.DynamoConfig()), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

// dynamoClient builds a DynamoDB client from the shared AWS configuration.
func dynamoClient(ctx context.Context, cfg config.Dynamo) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
