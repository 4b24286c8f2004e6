package app

import (
	"timerlint/internal/config"
	"timerlint/internal/scan"
	"timerlint/internal/schedule"
	"timerlint/internal/watch"
	logx "timerlint/pkg/logx"
)

// LogConfig maps the logging section onto logx.
func LogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// NewValidator builds a validator from the schedule section.
func NewValidator(cfg *config.Config, log logx.Logger) (*schedule.Validator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return schedule.New(
		schedule.WithLocation(loc),
		schedule.With24HourTime(cfg.Schedule.Use24h),
		schedule.WithLogger(log.With(logx.String("comp", "schedule"))),
	)
}

// NewScanner builds a scanner from the scan section.
func NewScanner(cfg *config.Config, log logx.Logger) *scan.Scanner {
	return scan.New(scan.Options{
		Include: cfg.Scan.Include,
		Exclude: cfg.Scan.Exclude,
		Workers: cfg.Scan.Workers,
	}, log.With(logx.String("comp", "scan")))
}

func watchSettings(cfg *config.Config, log logx.Logger) (watch.Settings, error) {
	v, err := NewValidator(cfg, log)
	if err != nil {
		return watch.Settings{}, err
	}
	debounce, minInterval, err := cfg.WatchTimings()
	if err != nil {
		return watch.Settings{}, err
	}
	return watch.Settings{
		Roots:       cfg.Scan.Roots,
		Scanner:     NewScanner(cfg, log),
		Validator:   v,
		Debounce:    debounce,
		MinInterval: minInterval,
	}, nil
}
