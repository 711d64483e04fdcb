/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package config loads the run configuration of the panestate binary.

Settings come from a YAML file, PANESTATE_* environment variables and command
line flags, in increasing order of precedence. The embedded engines can also
be tuned with the line-oriented tuning files read by ReadTuning.
*/
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/numaproj/panestate/pkg/state/backends"
	"github.com/numaproj/panestate/pkg/window"
)

// RunConfig is the configuration of one run.
type RunConfig struct {
	Query   string `mapstructure:"query"`
	Backend string `mapstructure:"backend"`
	// DataDir holds the directories of the on-disk backends.
	DataDir   string          `mapstructure:"dataDir"`
	KeepFiles bool            `mapstructure:"keepFiles"`
	Workers   int             `mapstructure:"workers"`
	Window    WindowConfig    `mapstructure:"window"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tuning    TuningConfig    `mapstructure:"tuning"`
}

type WindowConfig struct {
	Slide      time.Duration `mapstructure:"slide"`
	SliceCount uint64        `mapstructure:"sliceCount"`
	// SliceWidth is the sub-slide granularity of the sliced queries.
	SliceWidth time.Duration `mapstructure:"sliceWidth"`
}

type GeneratorConfig struct {
	// Rate is events per second of event time.
	Rate uint64 `mapstructure:"rate"`
	// Keys is the number of distinct keys.
	Keys uint64 `mapstructure:"keys"`
	// Duration is the event time covered by the run.
	Duration time.Duration `mapstructure:"duration"`
	// Epoch is the event time covered by one batch.
	Epoch time.Duration `mapstructure:"epoch"`
	// Throttle caps the wall-clock event rate, zero for unlimited.
	Throttle float64 `mapstructure:"throttle"`
	Seed     int64   `mapstructure:"seed"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TuningConfig points at optional tuning files of the on-disk engines.
type TuningConfig struct {
	LogFile string `mapstructure:"logFile"`
	LSMFile string `mapstructure:"lsmFile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("query", "window-count")
	v.SetDefault("backend", "memory")
	v.SetDefault("dataDir", ".")
	v.SetDefault("workers", 1)
	v.SetDefault("window.slide", time.Second)
	v.SetDefault("window.sliceCount", 3)
	v.SetDefault("window.sliceWidth", time.Second)
	v.SetDefault("generator.rate", 10000)
	v.SetDefault("generator.keys", 1000)
	v.SetDefault("generator.duration", 10*time.Second)
	v.SetDefault("generator.epoch", time.Millisecond)
	v.SetDefault("generator.seed", 1)
	v.SetDefault("metrics.port", 2469)
}

// LoadRunConfig reads path, when not empty, and applies environment variables
// and any flags that were set.
func LoadRunConfig(path string, flags *pflag.FlagSet) (*RunConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PANESTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to load configuration file")
		}
	}
	if flags != nil {
		for key, flag := range map[string]string{"query": "query", "backend": "backend", "workers": "workers", "dataDir": "data-dir"} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "binding flag %s", flag)
				}
			}
		}
	}
	conf := &RunConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "failed unmarshal configuration")
	}
	return conf, conf.Validate()
}

// Validate checks the configuration for values no run can work with.
func (c *RunConfig) Validate() error {
	if c.Workers < 1 {
		return errors.Newf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Window.Slide <= 0 || c.Window.SliceCount == 0 {
		return errors.Newf("window slide and slice count must be positive, got %v and %d", c.Window.Slide, c.Window.SliceCount)
	}
	if c.Generator.Rate == 0 || c.Generator.Keys == 0 || c.Generator.Epoch <= 0 {
		return errors.New("generator rate, keys and epoch must be positive")
	}
	if _, err := backends.ParseKind(c.Backend); err != nil {
		return err
	}
	return nil
}

// BackendConfig resolves the backend kind and reads the tuning files.
func (c *RunConfig) BackendConfig() (backends.Config, error) {
	kind, err := backends.ParseKind(c.Backend)
	if err != nil {
		return backends.Config{}, err
	}
	cfg := backends.Config{Kind: kind, DataDir: c.DataDir, KeepFiles: c.KeepFiles}
	if c.Tuning.LogFile != "" {
		t, err := ReadTuningFile(c.Tuning.LogFile)
		if err != nil {
			return cfg, err
		}
		if cfg.Log, err = t.LogOptions(); err != nil {
			return cfg, err
		}
	}
	if c.Tuning.LSMFile != "" {
		t, err := ReadTuningFile(c.Tuning.LSMFile)
		if err != nil {
			return cfg, err
		}
		if cfg.LSM, err = t.LSMOptions(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// WindowConfig returns the window shape in nanoseconds.
func (c *RunConfig) WindowConfig() window.Config {
	return window.Config{
		Slide:      uint64(c.Window.Slide),
		SliceCount: c.Window.SliceCount,
		SliceWidth: uint64(c.Window.SliceWidth),
	}
}
