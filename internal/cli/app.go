package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/tripvoice"
	"github.com/aretw0/tripvoice/internal/config"
	"github.com/aretw0/tripvoice/pkg/adapters/backend"
	"github.com/aretw0/tripvoice/pkg/adapters/badger"
	"github.com/aretw0/tripvoice/pkg/adapters/file"
	"github.com/aretw0/tripvoice/pkg/adapters/memory"
	"github.com/aretw0/tripvoice/pkg/adapters/process"
	"github.com/aretw0/tripvoice/pkg/adapters/redis"
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/aretw0/tripvoice/pkg/observability"
	"github.com/aretw0/tripvoice/pkg/persistence/middleware"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// AppOptions selects which parts of the assistant are attached.
type AppOptions struct {
	Debug bool

	// Devices attaches the local microphone, player and fallback voice.
	Devices bool

	// Backend and Transcriber replace the HTTP client. Tests use them to run
	// without the planning service.
	Backend     ports.ConversationBackend
	Transcriber ports.Transcriber
}

// App is an assistant together with the resources built for it.
type App struct {
	Assistant *tripvoice.Assistant
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics

	// Exports mirrors the latest document delivered to the export directory.
	Exports *memory.DocumentSink

	Logger  *slog.Logger
	closers []io.Closer
}

// NewApp wires an assistant from cfg with standard CLI conventions.
func NewApp(cfg *config.Config, opts AppOptions) (*App, error) {
	logger, err := createLogger(cfg, opts.Debug)
	if err != nil {
		return nil, err
	}

	app := &App{
		Registry: prometheus.NewRegistry(),
		Exports:  memory.NewDocumentSink(),
		Logger:   logger,
	}
	app.Metrics = observability.NewMetrics(app.Registry)

	conv, transcriber, synth := opts.Backend, opts.Transcriber, ports.Synthesizer(nil)
	if conv == nil {
		client := backend.New(cfg.APIURL, backend.WithLogger(logger.With("component", "backend")))
		conv, transcriber, synth = client, client, client
	}

	hooks := app.Metrics.Hooks()
	if opts.Debug {
		hooks = domain.ChainHooks(hooks, observability.LogHooks(logger))
	}

	sink := &mirrorSink{
		primary: newFileSink(cfg.Export),
		mirror:  app.Exports,
	}

	assistantOpts := []tripvoice.Option{
		tripvoice.WithLogger(logger),
		tripvoice.WithLifecycleHooks(hooks),
		tripvoice.WithDocumentSink(sink),
		tripvoice.WithTimeouts(tripvoice.Timeouts{
			Analyze:    cfg.Timeouts.Analyze,
			Explain:    cfg.Timeouts.Explain,
			Plan:       cfg.Timeouts.Plan,
			Export:     cfg.Timeouts.Export,
			Transcribe: cfg.Timeouts.Transcribe,
			Synthesize: cfg.Timeouts.TTS,
		}),
		tripvoice.WithPreferredVendor(cfg.Speech.PreferredVendor),
		tripvoice.WithProsody(cfg.Speech.Rate, cfg.Speech.Pitch),
	}
	if transcriber != nil {
		assistantOpts = append(assistantOpts, tripvoice.WithTranscriber(transcriber))
	}
	if !cfg.Speech.Enabled {
		assistantOpts = append(assistantOpts, tripvoice.WithSpeechDisabled())
	}

	if opts.Devices {
		devices, err := process.LoadDevices(cfg.DevicesFile)
		if err != nil {
			return nil, fmt.Errorf("error loading devices: %w", err)
		}
		assistantOpts = append(assistantOpts, tripvoice.WithMicrophone(process.NewMicrophone(devices[process.DeviceMicrophone])))
		if synth != nil {
			assistantOpts = append(assistantOpts,
				tripvoice.WithSynthesizer(synth),
				tripvoice.WithAudioPlayer(process.NewPlayer(devices[process.DevicePlayer])),
			)
		}
		if cfg.Speech.Local {
			assistantOpts = append(assistantOpts, tripvoice.WithLocalVoice(process.NewVoice(devices[process.DeviceVoice])))
		}

		cache, err := app.openCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		if cache != nil {
			assistantOpts = append(assistantOpts, tripvoice.WithAudioCache(cache), tripvoice.WithCacheScope(cfg.APIURL))
		}
	}

	app.Assistant = tripvoice.New(conv, assistantOpts...)
	logger.Debug("Assistant ready", "api_url", cfg.APIURL, "devices", opts.Devices, "cache", cfg.Cache.Backend)
	return app, nil
}

// openCache builds the audio cache selected in the configuration, sealed when
// an encryption key is set.
func (a *App) openCache(cfg config.Cache) (ports.AudioCache, error) {
	cache, err := a.openBackend(cfg)
	if err != nil || cache == nil || cfg.EncryptionKey == "" {
		return cache, err
	}
	keys, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    keys[0],
		FallbackKeys: keys[1:],
	})
	if err != nil {
		return nil, err
	}
	return middleware.Chain(cache, seal), nil
}

func (a *App) openBackend(cfg config.Cache) (ports.AudioCache, error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return memory.NewAudioCache(), nil
	case config.CacheRedis:
		c, err := redis.New(cfg.RedisURL, redis.WithTTL(cfg.TTL))
		if err != nil {
			return nil, fmt.Errorf("error opening redis cache: %w", err)
		}
		a.closers = append(a.closers, c)
		return c, nil
	case config.CacheBadger:
		c, err := badger.Open(cfg.Dir, badger.WithTTL(cfg.TTL))
		if err != nil {
			return nil, fmt.Errorf("error opening badger cache: %w", err)
		}
		a.closers = append(a.closers, c)
		return c, nil
	default:
		return nil, nil
	}
}

// Close stops the assistant and releases the caches.
func (a *App) Close() error {
	var errs []error
	if a.Assistant != nil {
		errs = append(errs, a.Assistant.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func newFileSink(cfg config.Export) *file.DocumentSink {
	var opts []file.Option
	if cfg.Unique {
		opts = append(opts, file.WithUniqueNames())
	}
	return file.NewDocumentSink(cfg.Dir, opts...)
}

// mirrorSink writes documents to disk and keeps the latest one in memory for
// front-ends that serve it back.
type mirrorSink struct {
	primary ports.DocumentSink
	mirror  *memory.DocumentSink
}

func (s *mirrorSink) Deliver(ctx context.Context, doc ports.Document) (string, error) {
	loc, err := s.primary.Deliver(ctx, doc)
	if err != nil {
		return "", err
	}
	_, _ = s.mirror.Deliver(ctx, doc)
	return loc, nil
}
