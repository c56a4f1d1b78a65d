//go:build vips

package main

import (
	imageapi "github.com/Skryldev/image-api"
	"github.com/Skryldev/image-api/adapters/vips"
	"github.com/Skryldev/image-api/config"
)

const engineName = "native+vips"

// engineOptions starts libvips when the configured backend asks for it.
func engineOptions(cfg config.Config) ([]imageapi.Option, func(), error) {
	if cfg.Engine.Backend != "vips" {
		return nil, func() {}, nil
	}
	b := vips.NewBackend(vips.BackendConfig{
		DefaultQuality: cfg.Engine.DefaultQuality,
		MaxCacheSize:   cfg.Engine.VipsCacheSize,
		MaxWorkers:     cfg.Engine.VipsWorkers,
		MaxDimension:   cfg.Limits.MaxDimension,
	})
	return []imageapi.Option{imageapi.WithOperations(b.Operations())}, b.Shutdown, nil
}
