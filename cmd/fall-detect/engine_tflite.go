//go:build tflite

package main

import (
	"github.com/banshee-data/fallwatch/internal/inference"
	"github.com/banshee-data/fallwatch/internal/inference/tflite"
)

func openLocalEngine(path string, threads int) (inference.Engine, func(), error) {
	e, err := tflite.Open(path, threads)
	if err != nil {
		return nil, nil, err
	}
	return e, e.Close, nil
}
