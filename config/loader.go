package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// durationKeys maps config sections to the fields that accept duration
// strings in files. The loader rewrites them to nanoseconds before the
// merged map is unmarshaled into the Config struct.
var durationKeys = map[string][]string{
	"server":  {"read_timeout", "write_timeout", "idle_timeout", "shutdown_timeout"},
	"bridge":  {"default_timeout", "sweep_interval", "stall_window"},
	"backend": {"latency"},
	"monitor": {"heartbeat_interval"},
}

// Loader assembles the configuration from layered sources. Layers are
// applied in order over the compiled defaults, then environment
// overrides are applied on top.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a loader with no layers and validation enabled.
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  "INFERGATE",
	}
}

// AddLayer appends a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation toggles post-merge validation.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file, replacing any layers
// added earlier.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges all layers over the defaults and applies environment
// overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, raw)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads one layer into a raw map. The file format follows the
// extension: .json is depth-checked and parsed as JSON, .yaml and .yml
// as YAML. Duration strings are normalized in place.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}

	l.normalizeDurations(raw)

	return raw, nil
}

// normalizeDurations rewrites duration strings in known fields to
// nanosecond integers so the merged map unmarshals into time.Duration.
func (l *Loader) normalizeDurations(raw map[string]any) {
	for section, keys := range durationKeys {
		sec, ok := raw[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			s, ok := sec[key].(string)
			if !ok {
				continue
			}
			if d, err := parseDurationWithDays(s); err == nil {
				sec[key] = d.Nanoseconds()
			}
		}
	}
}

// parseDurationWithDays parses durations that may include a day suffix
// (e.g. "14d") on top of the units time.ParseDuration knows.
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// mergeFromMap merges a raw override map into the base config, only
// touching fields present in the map.
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := l.deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking
// precedence. Nil override values are skipped so a layer cannot blank
// out a setting by accident.
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// envOverride reads and validates one environment variable. Invalid
// values are reported on stderr and ignored rather than failing the
// whole load.
func (l *Loader) envOverride(name string) (string, bool) {
	key := l.envPrefix + "_" + name
	val := os.Getenv(key)
	if val == "" {
		return "", false
	}
	if err := validateEnvVar(key, val); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WARNING: ignoring %s: %v\n", key, err)
		return "", false
	}
	return val, true
}

// applyEnvOverrides applies INFERGATE_* environment overrides. These
// win over every file layer.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val, ok := l.envOverride("PLATFORM_ID"); ok {
		cfg.Platform.ID = val
	}
	if val, ok := l.envOverride("PLATFORM_ENVIRONMENT"); ok {
		cfg.Platform.Environment = val
	}
	if val, ok := l.envOverride("LOG_LEVEL"); ok {
		cfg.Logging.Level = val
	}
	if val, ok := l.envOverride("LOG_FORMAT"); ok {
		cfg.Logging.Format = val
	}
	if val, ok := l.envOverride("LISTEN"); ok {
		cfg.Server.Addr = val
	}
	if val, ok := l.envOverride("AUTH_TOKEN"); ok {
		cfg.Server.AuthToken = val
	}
	if val, ok := l.envOverride("MODEL_ID"); ok {
		cfg.Server.ModelID = val
	}
	if val, ok := l.envOverride("BACKEND"); ok {
		cfg.Backend.Kind = val
	}
}
