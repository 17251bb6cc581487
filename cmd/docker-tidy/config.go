// Copyright 2024 The Docker Tidy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/GoogleCloudPlatform/docker-tidy/pkg/tidy"
)

const envPrefix = "TIDY"

// levels orders the log levels from most to least verbose; -v and -q move
// along it.
var levels = []string{"debug", "info", "warning", "error", "critical"}

// settings is the merged configuration of a run.
type settings struct {
	DryRun      bool
	Timeout     time.Duration
	LogLevel    string
	LogJSON     bool
	Concurrency int
	MetricsFile string
	Output      string
	FailOnError bool

	Policy tidy.PolicyConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dry_run", false)
	v.SetDefault("http_timeout", 60)
	v.SetDefault("logging.level", "warning")
	v.SetDefault("logging.json", false)
	v.SetDefault("concurrency", 1)
	v.SetDefault("metrics_file", "")
	v.SetDefault("output", tidy.FormatText)
	v.SetDefault("fail_on_error", false)

	v.SetDefault("gc.max_container_age", "")
	v.SetDefault("gc.max_image_age", "")
	v.SetDefault("gc.dangling_volumes", false)
	v.SetDefault("gc.exclude_images", []string{})
	v.SetDefault("gc.exclude_container_labels", []string{})

	v.SetDefault("stop.max_run_time", "")
	v.SetDefault("stop.prefix", []string{})
}

// configFiles returns the config files to merge, lowest precedence first. An
// explicit file replaces the per-user one.
func configFiles(explicit string) []string {
	user := explicit
	if user == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			user = filepath.Join(dir, "docker-tidy", "config.yml")
		}
	}

	files := make([]string, 0, 4)
	if user != "" {
		files = append(files, user)
	}
	return append(files, ".dockertidy", ".dockertidy.yml", ".dockertidy.yaml")
}

// initConfig layers defaults, config files and the environment. Flags are
// bound by the commands and take precedence over all of them.
func initConfig(v *viper.Viper, configFile string) error {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv(envPrefix + "_CONFIG_FILE")
	}

	v.SetConfigType("yaml")
	for _, file := range configFiles(configFile) {
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) && file != configFile {
				continue
			}
			return invalidArgument("failed to read config file "+file, err)
		}

		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return invalidArgument("failed to parse config file "+file, err)
		}
	}
	return nil
}

// loadSettings reads the merged configuration and applies the verbosity
// counters to the log level.
func loadSettings(v *viper.Viper, verbose, quiet int) (*settings, error) {
	level, err := adjustLevel(v.GetString("logging.level"), verbose-quiet)
	if err != nil {
		return nil, invalidArgument("invalid logging configuration", err)
	}

	output, err := tidy.ParseFormat(v.GetString("output"))
	if err != nil {
		return nil, invalidArgument("invalid output configuration", err)
	}

	timeout := v.GetInt("http_timeout")
	if timeout < 0 {
		return nil, invalidArgument("invalid http timeout", fmt.Errorf("must not be negative, got %d", timeout))
	}
	concurrency := v.GetInt("concurrency")
	if concurrency < 1 {
		return nil, invalidArgument("invalid concurrency", fmt.Errorf("must be at least 1, got %d", concurrency))
	}

	return &settings{
		DryRun:      v.GetBool("dry_run"),
		Timeout:     time.Duration(timeout) * time.Second,
		LogLevel:    level,
		LogJSON:     v.GetBool("logging.json"),
		Concurrency: concurrency,
		MetricsFile: v.GetString("metrics_file"),
		Output:      output,
		FailOnError: v.GetBool("fail_on_error"),

		Policy: tidy.PolicyConfig{
			MaxContainerAge:        v.GetString("gc.max_container_age"),
			MaxImageAge:            v.GetString("gc.max_image_age"),
			DanglingVolumes:        v.GetBool("gc.dangling_volumes"),
			ExcludeImages:          v.GetStringSlice("gc.exclude_images"),
			ExcludeContainerLabels: v.GetStringSlice("gc.exclude_container_labels"),
			MaxRunTime:             v.GetString("stop.max_run_time"),
			StopPrefixes:           v.GetStringSlice("stop.prefix"),
			DryRun:                 v.GetBool("dry_run"),
		},
	}, nil
}

// adjustLevel moves the level by steps towards more (positive) or less
// (negative) verbosity, clamped to the known levels.
func adjustLevel(level string, steps int) (string, error) {
	if _, err := tidy.ParseLevel(level); err != nil {
		return "", err
	}

	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "", "warn":
		normalized = "warning"
	case "fatal":
		normalized = "critical"
	}

	idx := 0
	for i, l := range levels {
		if l == normalized {
			idx = i
		}
	}

	idx -= steps
	if idx < 0 {
		idx = 0
	}
	if idx >= len(levels) {
		idx = len(levels) - 1
	}
	return levels[idx], nil
}
