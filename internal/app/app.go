// Package app wires the monitor, its event consumers and its control surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	grpcapi "github.com/erikprat61/supreme-memory/internal/api/grpc"
	"github.com/erikprat61/supreme-memory/internal/config"
	"github.com/erikprat61/supreme-memory/internal/events"
	httpapi "github.com/erikprat61/supreme-memory/internal/http"
	"github.com/erikprat61/supreme-memory/internal/observability"
	"github.com/erikprat61/supreme-memory/internal/observability/logging"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/service/combiner"
	"github.com/erikprat61/supreme-memory/internal/service/monitor"
	"github.com/erikprat61/supreme-memory/internal/service/pipeline"
	"github.com/erikprat61/supreme-memory/internal/service/segment"
	"github.com/erikprat61/supreme-memory/internal/service/stt"
	"github.com/erikprat61/supreme-memory/internal/service/summary"
	"github.com/erikprat61/supreme-memory/internal/service/vad"
	"github.com/erikprat61/supreme-memory/internal/storage"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Monitor *monitor.Monitor
	Hub     *events.Hub

	bus        *events.Bus
	publisher  *events.Publisher
	grpc       *grpcapi.Server
	http       *observability.Server
	unsubs     []func()
	closeSTT   func() error
	grpcListen net.Listener
}

// New constructs the application from cfg. Nothing is started until Run.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &Application{Cfg: cfg}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	m := metrics.DefaultMetrics
	format := cfg.Audio.CanonicalFormat()

	transcriber, closeSTT, err := NewTranscriber(ctx, cfg.STT, format)
	if err != nil {
		return nil, fmt.Errorf("create transcriber: %w", err)
	}
	a.closeSTT = closeSTT

	source, err := NewSource(cfg.Audio)
	if err != nil {
		_ = closeSTT()
		return nil, fmt.Errorf("create audio source: %w", err)
	}

	a.bus = events.NewBus()
	a.Hub = events.NewHub()
	a.publisher = events.New(&events.Config{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicTranscripts: cfg.Kafka.TopicTranscripts,
		TopicSessions:    cfg.Kafka.TopicSessions,
		TopicActivity:    cfg.Kafka.TopicActivity,
		Principal:        cfg.Kafka.Principal,
		PublishTimeout:   cfg.Kafka.PublishTimeout,
	})
	a.unsubs = append(a.unsubs,
		a.bus.Subscribe("kafka", a.publisher, cfg.Observability.EventBuffer),
		a.bus.Subscribe("websocket", a.Hub, cfg.Observability.EventBuffer),
	)

	store := storage.NewLocal()
	if cfg.Summary.Enabled {
		summarizer, err := NewSummarizer(cfg.Summary)
		if err != nil {
			a.release()
			return nil, err
		}
		a.unsubs = append(a.unsubs, a.bus.Subscribe("summary", summary.NewListener(summarizer, store), 0))
	}

	var (
		recorder *segment.Recorder
		pipe     *pipeline.Pipeline
	)
	mode := monitor.Mode(cfg.Service.Mode)
	switch mode {
	case monitor.ModeRecord:
		recorder = segment.NewRecorder(cfg.Recorder, format, store,
			stt.Instrument(transcriber, "part", m), combiner.New(store), a.bus)
	case monitor.ModeStream:
		pipe = pipeline.New(cfg.Pipeline.Config, format,
			stt.Instrument(transcriber, "window", m), a.bus)
	}

	a.Monitor, err = monitor.New(monitor.Config{
		Mode:            mode,
		Format:          format,
		FlushOnSoundEnd: cfg.Pipeline.FlushOnSoundEnd,
		StopTimeout:     cfg.Service.ShutdownTimeout,
	}, source, vad.New(cfg.VAD), recorder, pipe, a.bus)
	if err != nil {
		if pipe != nil {
			_ = pipe.Close(context.Background())
		}
		a.release()
		return nil, fmt.Errorf("create monitor: %w", err)
	}

	a.grpc = grpcapi.New(m)
	a.http = observability.NewServer(":"+cfg.Service.HTTPPort, httpapi.NewRouter(a.Monitor, a.Hub))

	appLogger.Info().
		Str("mode", cfg.Service.Mode).
		Str("source", cfg.Audio.Source).
		Str("sttProvider", stt.ProviderName(transcriber)).
		Str("format", format.String()).
		Msg("Voice monitor application created")
	return a, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})
	a.Logger = logging.WithComponent("application").With().
		Str("service", a.Cfg.Service.Principal).
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

// Start opens the gRPC listener and starts the control servers.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	lis, err := net.Listen("tcp", ":"+a.Cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on gRPC port %s: %w", a.Cfg.Service.GRPCPort, err)
	}
	a.grpcListen = lis

	go a.Hub.Run(ctx)
	go func() {
		if err := a.grpc.Serve(lis); err != nil {
			startLogger.Error().Err(err).Msg("gRPC serve failed")
		}
	}()
	a.http.Start()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("grpcAddr", lis.Addr().String()).
		Str("httpAddr", a.http.Addr()).
		Msg("Voice monitor starting")
	return nil
}

// Run captures until ctx is done or the source ends. The monitor's health
// status is SERVING while capture runs.
func (a *Application) Run(ctx context.Context) error {
	a.grpc.SetServing(true)
	err := a.Monitor.Run(ctx)
	a.grpc.SetServing(false)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown stops the monitor, drains event consumers and closes the servers.
// It is safe to call after Run returned.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Voice monitor shutting down")

	var errs []error
	if err := a.Monitor.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.grpcListen != nil {
		a.grpc.GracefulStop()
	}
	a.release()

	err := errors.Join(errs...)
	if err != nil {
		shutdownLogger.Warn().Err(err).Msg("Shutdown completed with errors")
	} else {
		shutdownLogger.Info().Msg("Shutdown complete")
	}
	return err
}

// release drains the event subscribers, then closes Kafka and the transcriber.
func (a *Application) release() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	if a.bus != nil {
		a.bus.Close()
		a.bus = nil
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close Kafka publisher")
		}
		a.publisher = nil
	}
	if a.closeSTT != nil {
		if err := a.closeSTT(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close transcriber")
		}
		a.closeSTT = nil
	}
}

// Serve runs Start, Run and Shutdown in order. The shutdown timeout starts
// counting once Run returns.
func (a *Application) Serve(ctx context.Context) error {
	err := a.Start(ctx)
	if err == nil {
		err = a.Run(ctx)
	}

	shutdownCtx, cancel := shutdownContext(a.Cfg.Service.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, a.Shutdown(shutdownCtx))
}
