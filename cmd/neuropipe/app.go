package main

import (
	"fmt"
	"log/slog"

	"neuropipe/internal/config"
	"neuropipe/internal/infrastructure"
	"neuropipe/internal/operations"
	"neuropipe/internal/processing"
	"neuropipe/internal/registry"
)

// environment is the wired pipeline behind every command
type environment struct {
	paths *config.Paths
	repo  *registry.SQLite
	coord *operations.Coordinator
}

func openEnvironment(cfg *config.Config, logger *slog.Logger, tel *infrastructure.Telemetry) (*environment, error) {
	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	repo, err := registry.Open(paths.RegistryDB, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	coord, err := operations.NewCoordinator(operations.Options{
		Repository: repo,
		Processors: processing.NewDefaultRegistry(logger, cfg.Pipeline.PreviewSize),
		Paths:      paths,
		Pipeline:   cfg.Pipeline,
		Telemetry:  tel,
		Logger:     logger,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &environment{paths: paths, repo: repo, coord: coord}, nil
}

func (e *environment) Close() error {
	return e.repo.Close()
}

func (c *cli) open() (*environment, error) {
	return openEnvironment(c.cfg, c.logger, infrastructure.NoopTelemetry())
}
