// Command fall-detect classifies a sequence of still images as a fall or
// not. Images are replayed as if captured -interval apart.
//
//	fall-detect [flags] before.jpg after.jpg [more.jpg...]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/fallwatch/internal/config"
	"github.com/banshee-data/fallwatch/internal/monitoring"
	"github.com/banshee-data/fallwatch/internal/version"
)

var (
	envFile    = flag.String("env", "", "Load FALLWATCH_* settings from this env file (default: ./.env if present)")
	tuningPath = flag.String("tuning", "", "Tuning config JSON (overrides FALLWATCH_TUNING)")
	engineName = flag.String("engine", "", "Inference engine: grpc or tflite (overrides FALLWATCH_ENGINE)")
	modelPath  = flag.String("model", "", "TFLite model path (overrides FALLWATCH_MODEL)")
	engineAddr = flag.String("addr", "", "Remote inference server host:port (overrides FALLWATCH_ENGINE_ADDR)")
	interval   = flag.Duration("interval", 2*time.Second, "Simulated time between consecutive images")
	yamlPath   = flag.String("yaml", "", "Write the per-frame report as YAML to this file")
	storeOn    = flag.Bool("store", false, "Persist samples to FALLWATCH_DB_PATH / FALLWATCH_DATA_DIR")
	plotDir    = flag.String("plots", "", "Write lean-angle plots under this directory")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] image1 image2 [image3...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVer {
		fmt.Println(version.String("fall-detect"))
		return
	}

	images := flag.Args()
	if len(images) < 2 {
		flag.Usage()
		log.Fatalf("need at least two images, got %d", len(images))
	}

	// Flags win over the environment.
	overrides := map[string]string{
		"TUNING":      *tuningPath,
		"ENGINE":      *engineName,
		"MODEL":       *modelPath,
		"ENGINE_ADDR": *engineAddr,
	}
	for k, v := range overrides {
		if v != "" {
			os.Setenv(config.EnvPrefix+"_"+k, v)
		}
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	rc, err := config.LoadRuntimeConfig(envFiles...)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	monitoring.SetDebug(rc.Debug || *debug)

	tuning, err := loadTuning(rc.TuningPath)
	if err != nil {
		log.Fatalf("tuning: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, closeEngine, err := openEngine(ctx, rc)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer closeEngine()

	opts := runOptions{
		Interval: *interval,
		YAMLPath: *yamlPath,
		PlotDir:  *plotDir,
	}
	if *storeOn {
		opts.DBPath = rc.DBPath
		opts.DataDir = rc.DataDir
	}

	rep, err := run(ctx, engine, tuning, opts, images, os.Stdout)
	if err != nil {
		log.Fatalf("fall-detect: %v", err)
	}
	if !rep.Fall() {
		os.Exit(2)
	}
}

// loadTuning reads path, falling back to built-in defaults when the file
// does not exist.
func loadTuning(path string) (*config.TuningConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("tuning file %s not found, using built-in defaults", path)
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}
