//go:build !vips

package main

import (
	imageapi "github.com/Skryldev/image-api"
	"github.com/Skryldev/image-api/config"
)

const engineName = "native"

// engineOptions keeps the pure-Go operations; the vips backend needs a
// build with -tags vips.
func engineOptions(_ config.Config) ([]imageapi.Option, func(), error) {
	return nil, func() {}, nil
}
