// Package app wires configuration, logging, storage, the watcher and the HTTP
// API into the long-running timerlint process.
package app

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"timerlint/internal/config"
	"timerlint/internal/httpapi"
	"timerlint/internal/runtime/supervisor"
	"timerlint/internal/schedule"
	"timerlint/internal/storage"
	"timerlint/internal/watch"
	logx "timerlint/pkg/logx"
	"timerlint/pkg/systemd"
)

// Mode selects which components run.
type Mode int

const (
	// ModeWatch scans, watches the roots and serves the API when http.addr is set.
	ModeWatch Mode = iota
	// ModeServe serves only the validation API.
	ModeServe
)

// Options override config values from the command line.
type Options struct {
	Mode     Mode
	HTTPAddr string
}

type App struct {
	cfgm *config.ConfigManager
	opts Options
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	validator atomic.Pointer[schedule.Validator]
	watcher   *watch.Watcher
	metrics   *httpapi.Metrics
	api       *httpapi.Server
	httpAddr  string
	notify    systemd.Notifier
}

func NewApp(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(LogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	// Reloads with a storage section we could not open are rejected up front.
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		_, _, err := mapStorageConfig(c)
		return err
	})

	a := &App{
		cfgm:     cfgm,
		opts:     opts,
		log:      log,
		logs:     logSvc,
		metrics:  httpapi.NewMetrics(),
		httpAddr: strings.TrimSpace(cfg.HTTP.Addr),
		notify:   systemd.Nop{},
	}
	if opts.HTTPAddr != "" {
		a.httpAddr = opts.HTTPAddr
	}

	v, err := NewValidator(cfg, log)
	if err != nil {
		return nil, err
	}
	a.validator.Store(v)

	if opts.Mode == ModeWatch {
		a.notify = systemd.Socket{}
		if sc, enabled, err := mapStorageConfig(cfg); err != nil {
			return nil, err
		} else if enabled {
			st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
			if err != nil {
				return nil, err
			}
			a.store = st
			log.Info("storage enabled", logx.String("driver", sc.Driver))
		}

		settings, err := watchSettings(cfg, log)
		if err != nil {
			a.closeStore()
			return nil, err
		}
		settings.Validator = v
		wopts := []watch.Option{
			watch.WithLogger(log.With(logx.String("comp", "watch"))),
			watch.WithNotifier(a.notify),
			watch.WithObserver(a.metrics),
		}
		if a.store != nil {
			wopts = append(wopts, watch.WithStore(a.store))
		}
		if a.watcher, err = watch.New(settings, wopts...); err != nil {
			a.closeStore()
			return nil, err
		}
	} else if a.httpAddr == "" {
		return nil, errors.New("serve mode needs an address: set http.addr or --addr")
	}

	if a.httpAddr != "" {
		hc := httpapi.Config{
			Validator: a.validator.Load,
			Metrics:   a.metrics,
			Log:       log.With(logx.String("comp", "http")),
			Status:    a.status,
			Pprof:     cfg.HTTP.Pprof,
		}
		if a.watcher != nil {
			hc.Findings = a.watcher
		}
		if a.api, err = httpapi.New(hc); err != nil {
			a.closeStore()
			return nil, err
		}
	}
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

type statusResponse struct {
	Mode       string              `json:"mode"`
	Config     string              `json:"config,omitempty"`
	Supervisor supervisor.Snapshot `json:"supervisor"`
}

func (a *App) status() any {
	mode := "watch"
	if a.opts.Mode == ModeServe {
		mode = "serve"
	}
	resp := statusResponse{Mode: mode, Config: a.cfgm.Path()}
	if a.sup != nil {
		resp.Supervisor = a.sup.Snapshot()
	}
	return resp
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if a.watcher != nil {
		a.sup.GoRestart("watch", time.Second, 30*time.Second, a.watcher.Run)
	}
	if a.api != nil {
		addr := a.httpAddr
		a.sup.Go("http", func(c context.Context) error {
			return a.api.Serve(c, addr)
		})
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.apply(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("http", a.httpAddr), logx.Bool("watch", a.watcher != nil))
	return nil
}

// apply pushes a reloaded config into the running components.
func (a *App) apply(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := map[string]bool{}
	for _, s := range sections {
		changed[s] = true
	}

	if err := systemd.Reloading(a.notify); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	}
	defer func() {
		if err := systemd.Ready(a.notify); err != nil {
			a.log.Debug("sd_notify failed", logx.Err(err))
		}
	}()

	if changed["logging"] {
		a.logs.Apply(LogConfig(next))
	}
	if changed["storage"] || changed["http"] {
		a.log.Warn("storage or http config changed; restart required for changes to take effect")
	}
	if changed["schedule"] || changed["scan"] || changed["watch"] {
		settings, err := watchSettings(next, a.log)
		if err != nil {
			a.log.Warn("invalid config; keeping previous", logx.Err(err))
		} else {
			a.validator.Store(settings.Validator)
			if a.watcher != nil {
				if err := a.watcher.Apply(settings); err != nil {
					a.log.Warn("watch settings rejected", logx.Err(err))
				}
			}
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context) error {
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	a.closeStore()
	a.log.Info("app stopped")
	if cerr := a.logs.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.store = nil
}
