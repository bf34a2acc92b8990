package main

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/njchilds90/gograd"
)

// Config is the optional YAML file named by --config or $GOGRAD_CONFIG.
//
//	log_level: debug
//	format: yaml
//	tolerance: 1e-9
//	bindings:
//	  x: 2
//	  v: [1, 2]
//	  M: [[1, 2], [3, 4]]
type Config struct {
	LogLevel  string                 `yaml:"log_level"`
	Format    string                 `yaml:"format"`
	Tolerance float64                `yaml:"tolerance"`
	Bindings  map[string]interface{} `yaml:"bindings"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "warn",
		Format:    string(gograd.FormatJSON),
		Tolerance: 1e-9,
	}
}

// LoadConfig reads path over the defaults; an empty path is the defaults.
// $GOGRAD_LOG_LEVEL overrides the file's level.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		byts, err := ioutil.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(byts, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if lvl := os.Getenv("GOGRAD_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	if _, err := log15.LvlFromString(cfg.LogLevel); err != nil {
		return errors.Wrapf(err, "log_level %q", cfg.LogLevel)
	}
	switch gograd.Format(cfg.Format) {
	case gograd.FormatJSON, gograd.FormatCBOR, gograd.FormatYAML:
	default:
		return errors.Errorf("format %q: want json, cbor or yaml", cfg.Format)
	}
	if cfg.Tolerance < 0 {
		return errors.Errorf("tolerance %g: must not be negative", cfg.Tolerance)
	}
	return nil
}

// handler is the log15 handler for cfg's level, writing terminal-formatted
// records to w.
func (cfg Config) handler(w io.Writer) log15.Handler {
	lvl, err := log15.LvlFromString(cfg.LogLevel)
	if err != nil {
		lvl = log15.LvlWarn
	}
	return log15.LvlFilterHandler(lvl, log15.StreamHandler(w, log15.TerminalFormat()))
}
