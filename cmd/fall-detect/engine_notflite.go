//go:build !tflite

package main

import (
	"errors"

	"github.com/banshee-data/fallwatch/internal/inference"
)

func openLocalEngine(string, int) (inference.Engine, func(), error) {
	return nil, nil, errors.New("built without TFLite support: rebuild with -tags tflite or use -engine grpc")
}
