package main

import (
	"context"

	"github.com/banshee-data/fallwatch/internal/config"
	"github.com/banshee-data/fallwatch/internal/inference"
	"github.com/banshee-data/fallwatch/internal/inference/remote"
)

// openEngine returns the configured engine and a func releasing it.
func openEngine(ctx context.Context, rc *config.RuntimeConfig) (inference.Engine, func(), error) {
	if rc.Engine == "tflite" {
		return openLocalEngine(rc.ModelPath, rc.Threads)
	}

	cfg := remote.DefaultClientConfig()
	cfg.Timeout = rc.EngineTimeout
	c, err := remote.Dial(ctx, rc.EngineAddr, cfg)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}
