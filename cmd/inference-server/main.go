//go:build tflite

// Command inference-server exposes a local TFLite pose model over gRPC so
// that fall-detect instances without TFLite can share one accelerator host.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/fallwatch/internal/inference/remote"
	"github.com/banshee-data/fallwatch/internal/inference/tflite"
	"github.com/banshee-data/fallwatch/internal/monitoring"
	"github.com/banshee-data/fallwatch/internal/version"
)

var (
	listen  = flag.String("listen", ":50051", "gRPC listen address")
	model   = flag.String("model", "", "TFLite model path")
	threads = flag.Int("threads", 4, "Interpreter threads")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	showVer = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String("inference-server"))
		return
	}
	monitoring.SetDebug(*debug)

	if *model == "" {
		log.Fatalf("-model is required")
	}
	engine, err := tflite.Open(*model, *threads)
	if err != nil {
		log.Fatalf("failed to load model: %v", err)
	}
	defer engine.Close()

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *listen, err)
	}

	gs := remote.NewGRPCServer(remote.NewServer(engine))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("shutting down")
		gs.GracefulStop()
	}()

	spec := engine.InputSpec()
	log.Printf("serving %s (input %v %s) on %s", *model, spec.Shape, spec.Type, lis.Addr())
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
