package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gocv.io/x/gocv"

	"github.com/tracksight/tracksight/internal/api"
	"github.com/tracksight/tracksight/internal/config"
	"github.com/tracksight/tracksight/internal/pipeline"
	"github.com/tracksight/tracksight/internal/vision"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	inputPath := flag.String("input", "", "video file or capture device to read")
	outputPath := flag.String("output", "", "annotated output video file (optional)")
	listenAddr := flag.String("listen", "", "override API listen address")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("can't load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}

	log := newLogger(cfg.Logging)
	if *inputPath == "" {
		log.Error("missing required -input")
		os.Exit(1)
	}
	if cfg.Detector.ModelPath == "" {
		log.Error("detector.model_path is required")
		os.Exit(1)
	}

	if err := run(cfg, log, *inputPath, *outputPath); err != nil && err != context.Canceled {
		log.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func run(cfg *config.Config, log *slog.Logger, inputPath, outputPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	detector, err := vision.NewONNXDetector(cfg.Detector.ModelPath, cfg.Detector.InputWidth, cfg.Detector.InputHeight, gocv.NetBackendDefault, gocv.NetTargetCPU)
	if err != nil {
		return err
	}
	defer detector.Close()

	var embedder vision.Embedder
	if cfg.Reid.Enabled {
		emb, err := vision.NewONNXEmbedder(cfg.Reid.ModelPath, cfg.Reid.InputWidth, cfg.Reid.InputHeight, cfg.Reid.OutputLayer)
		if err != nil {
			return err
		}
		defer emb.Close()
		embedder = emb
	}

	labels := vision.NewLabels(nil)
	if cfg.Detector.LabelsPath != "" {
		labels, err = vision.LoadLabelsFile(cfg.Detector.LabelsPath)
		if err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(registry)
	pipe := pipeline.New(cfg, log, detector, embedder, labels, metrics)
	log.Info("pipeline ready", "session", pipe.SessionID(), "input", inputPath)

	if cfg.Server.Enabled {
		server := api.NewServer(cfg.Server.Listen, log, pipe, registry)
		go func() {
			if err := server.Start(); err != nil {
				log.Error("api server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	capture, err := gocv.OpenVideoCapture(inputPath)
	if err != nil {
		return err
	}
	defer capture.Close()

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = 25.0
	}

	var writer *gocv.VideoWriter
	if outputPath != "" {
		writer, err = gocv.VideoWriterFile(outputPath, "XVID", fps, width, height, true)
		if err != nil {
			return err
		}
		defer writer.Close()
	}

	// Frame source: single reader goroutine feeding the pipeline
	frames := make(chan gocv.Mat)
	go func() {
		defer close(frames)
		for {
			frame := gocv.NewMat()
			if ok := capture.Read(&frame); !ok {
				frame.Close()
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				frame.Close()
				return
			}
		}
	}()

	// Annotation consumer, pipelined one frame behind processing
	results := make(chan pipeline.FrameResult, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		annotate(log, writer, results)
	}()

	err = pipe.Run(ctx, frames, results)
	<-done
	log.Info("run finished", "stats", pipe.Stats())
	return err
}

// annotate consumes frame results, draws tracks onto the source frames
// and writes them out. It owns every frame it receives.
func annotate(log *slog.Logger, writer *gocv.VideoWriter, results <-chan pipeline.FrameResult) {
	for res := range results {
		if writer != nil {
			vision.DrawTracks(&res.Frame, res.Tracks)
			if res.Elapsed > 0 {
				vision.DrawFPS(&res.Frame, 1.0/res.Elapsed.Seconds())
			}
			if err := writer.Write(res.Frame); err != nil {
				log.Warn("can't write annotated frame", "error", err)
			}
		}
		res.Frame.Close()
	}
}
