package main

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/async-resource/internal/api"
	"github.com/yourusername/async-resource/internal/config"
	"github.com/yourusername/async-resource/internal/examples"
	"github.com/yourusername/async-resource/internal/jobs"
)

func setupJobs(cfg *config.Config, log *slog.Logger) (*jobs.Manager, error) {
	manager, err := jobs.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up jobs: %w", err)
	}
	examples.RegisterTasks(manager, cfg)
	return manager, nil
}

func mountAPI(router *gin.Engine, cfg *config.Config, log *slog.Logger, manager *jobs.Manager, middleware ...gin.HandlerFunc) error {
	overrides, err := config.LoadResourceOverrides(cfg.ResourcesFile)
	if err != nil {
		return err
	}

	v1, err := api.New(manager, api.Options{
		Name:          cfg.APIName,
		PathPrefix:    "/api",
		BaseURL:       cfg.PublicBaseURL,
		DefaultLimit:  cfg.DefaultLimit,
		MaxLimit:      cfg.MaxLimit,
		Overrides:     overrides,
		PollRateLimit: float64(cfg.PollRateLimit),
		PollRateBurst: cfg.PollRateBurst,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	if err := examples.RegisterResources(v1, manager, cfg); err != nil {
		return err
	}
	v1.Mount(router, middleware...)
	return nil
}
