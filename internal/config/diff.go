package config

import (
	"reflect"
	"sort"
	"strings"

	logx "timerlint/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and
// structured attrs for logging the new values.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Scan, newCfg.Scan) {
		changed = append(changed, "scan")
		attrs = append(attrs,
			logx.String("scan.roots", strings.Join(newCfg.Scan.Roots, ",")),
			logx.Int("scan.include_count", len(newCfg.Scan.Include)),
			logx.Int("scan.exclude_count", len(newCfg.Scan.Exclude)),
		)
	}

	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule.timezone", strings.TrimSpace(newCfg.Schedule.Timezone)),
			logx.Bool("schedule.use_24h", newCfg.Schedule.Use24h),
		)
	}

	if strings.TrimSpace(oldCfg.Watch.Debounce) != strings.TrimSpace(newCfg.Watch.Debounce) ||
		strings.TrimSpace(oldCfg.Watch.MinInterval) != strings.TrimSpace(newCfg.Watch.MinInterval) {
		changed = append(changed, "watch")
		attrs = append(attrs,
			logx.String("watch.debounce", strings.TrimSpace(newCfg.Watch.Debounce)),
			logx.String("watch.min_interval", strings.TrimSpace(newCfg.Watch.MinInterval)),
		)
	}

	// Storage: nil means disabled.
	oS, nS := trimStorage(oldCfg.Storage), trimStorage(newCfg.Storage)
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nS.Driver),
			logx.String("storage.path", nS.Path),
			logx.String("storage.busy_timeout", nS.BusyTimeout),
		)
	}

	if strings.TrimSpace(oldCfg.HTTP.Addr) != strings.TrimSpace(newCfg.HTTP.Addr) || oldCfg.HTTP.Pprof != newCfg.HTTP.Pprof {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
			logx.Bool("http.pprof", newCfg.HTTP.Pprof),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func trimStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return StorageConfig{
		Driver:      strings.ToLower(strings.TrimSpace(s.Driver)),
		Path:        strings.TrimSpace(s.Path),
		BusyTimeout: strings.TrimSpace(s.BusyTimeout),
	}
}
