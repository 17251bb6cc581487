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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/docker-tidy/pkg/tidy"
)

// fakeHost is an in-memory host with one old stopped container.
type fakeHost struct {
	mu      sync.Mutex
	calls   []string
	fail    bool
	closed  bool
	timeout time.Duration
}

func (h *fakeHost) record(call string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	if h.fail {
		return &tidy.APIError{StatusCode: 409, Err: errors.New("conflict")}
	}
	return nil
}

func (h *fakeHost) APIVersion(ctx context.Context) (string, error) { return "1.41", nil }

func (h *fakeHost) ListContainers(ctx context.Context, all bool) ([]*tidy.Container, error) {
	return []*tidy.Container{
		{ID: "abcd", Name: "/old", State: &tidy.ContainerState{FinishedAt: time.Date(2014, 1, 1, 1, 1, 1, 0, time.UTC)}},
		{ID: "abbb", Name: "/build-1", State: &tidy.ContainerState{Running: true, StartedAt: time.Date(2014, 1, 1, 1, 1, 1, 0, time.UTC)}},
	}, nil
}

func (h *fakeHost) InspectContainer(ctx context.Context, id string) (*tidy.Container, error) {
	cs, _ := h.ListContainers(ctx, true)
	for _, c := range cs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, tidy.ErrInspectMiss
}

func (h *fakeHost) ListImages(ctx context.Context) ([]*tidy.Image, error) { return nil, nil }

func (h *fakeHost) InspectImage(ctx context.Context, id string) (*tidy.Image, error) {
	return nil, tidy.ErrInspectMiss
}

func (h *fakeHost) ListDanglingVolumes(ctx context.Context) ([]*tidy.Volume, error) {
	return []*tidy.Volume{{Name: "v1"}}, nil
}

func (h *fakeHost) RemoveContainer(ctx context.Context, id string) error {
	return h.record("remove_container " + id)
}

func (h *fakeHost) RemoveImage(ctx context.Context, ref string) error {
	return h.record("remove_image " + ref)
}

func (h *fakeHost) RemoveVolume(ctx context.Context, name string) error {
	return h.record("remove_volume " + name)
}

func (h *fakeHost) StopContainer(ctx context.Context, id string) error {
	return h.record("stop_container " + id)
}

func (h *fakeHost) Close() error {
	h.closed = true
	return nil
}

// isolate keeps config files of the developer and the working directory out
// of the test.
func isolate(t *testing.T) {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func runCommand(t *testing.T, h *fakeHost, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand(func(timeout time.Duration) (host, error) {
		h.timeout = timeout
		return h, nil
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCommand(newHost)
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"gc", "stop", "version"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestCommandFlags(t *testing.T) {
	t.Parallel()

	root := newRootCommand(newHost)
	for _, name := range []string{
		"config", "dry-run", "timeout", "log-level", "log-json", "concurrency",
		"metrics-file", "output", "fail-on-error", "verbose", "quiet",
	} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag: %s", name)
	}

	gc, _, err := root.Find([]string{"gc"})
	require.NoError(t, err)
	for _, name := range []string{
		"max-container-age", "max-image-age", "dangling-volumes",
		"exclude-image", "exclude-container-label",
	} {
		assert.NotNil(t, gc.Flags().Lookup(name), "missing flag: %s", name)
	}

	stop, _, err := root.Find([]string{"stop"})
	require.NoError(t, err)
	assert.NotNil(t, stop.Flags().Lookup("max-run-time"))
	assert.NotNil(t, stop.Flags().Lookup("prefix"))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		exp  int
	}{
		{"nil", nil, 0},
		{"item_failures", fmt.Errorf("%w: 2 failed", errItemFailures), 4},
		{"invalid_argument", invalidArgument("invalid policy", errors.New("bad")), 2},
		{"inventory", tidy.InventoryError("list containers", errors.New("refused")), 3},
		{"internal", internalError("broken", errors.New("bad")), 5},
		{"plain", errors.New("boom"), 1},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.exp, exitCode(tc.err), tc.name)
	}
}

func TestAdjustLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level string
		steps int
		exp   string
	}{
		{"", 0, "warning"},
		{"warn", 1, "info"},
		{"warning", 2, "debug"},
		{"warning", 5, "debug"},
		{"INFO", -1, "warning"},
		{"error", -3, "critical"},
		{"fatal", 0, "critical"},
	}

	for _, tc := range cases {
		got, err := adjustLevel(tc.level, tc.steps)
		require.NoError(t, err)
		assert.Equal(t, tc.exp, got, "%s %+d", tc.level, tc.steps)
	}

	_, err := adjustLevel("chatty", 0)
	require.Error(t, err)
}

func TestLoadSettings_Defaults(t *testing.T) {
	isolate(t)

	v := viper.New()
	require.NoError(t, initConfig(v, ""))

	cfg, err := loadSettings(v, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, "warning", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, tidy.FormatText, cfg.Output)
	assert.False(t, cfg.DryRun)
	assert.Empty(t, cfg.Policy.MaxContainerAge)
	assert.Empty(t, cfg.Policy.ExcludeImages)
}

func TestLoadSettings_Layers(t *testing.T) {
	isolate(t)

	user := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "docker-tidy", "config.yml")
	require.NoError(t, os.MkdirAll(filepath.Dir(user), 0o755))
	require.NoError(t, os.WriteFile(user, []byte(strings.Join([]string{
		"http_timeout: 10",
		"logging:",
		"  level: info",
		"gc:",
		"  max_container_age: 1 week",
		"  max_image_age: 1 week",
		"  exclude_images:",
		"    - user/one:*",
	}, "\n")), 0o600))

	// The project file wins over the user file.
	require.NoError(t, os.WriteFile(".dockertidy.yml", []byte("gc:\n  max_image_age: 2 weeks\n"), 0o600))

	// The environment wins over both.
	t.Setenv("TIDY_HTTP_TIMEOUT", "30")

	v := viper.New()
	require.NoError(t, initConfig(v, ""))

	cfg, err := loadSettings(v, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "1 week", cfg.Policy.MaxContainerAge)
	assert.Equal(t, "2 weeks", cfg.Policy.MaxImageAge)
	assert.Equal(t, []string{"user/one:*"}, cfg.Policy.ExcludeImages)
}

func TestLoadSettings_MissingExplicitFile(t *testing.T) {
	isolate(t)

	err := initConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestLoadSettings_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("TIDY_OUTPUT", "xml")

	v := viper.New()
	require.NoError(t, initConfig(v, ""))

	_, err := loadSettings(v, 0, 0)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestGC_JSONReport(t *testing.T) {
	isolate(t)

	h := &fakeHost{}
	out, err := runCommand(t, h, "gc",
		"--max-container-age", "1 day",
		"--dangling-volumes",
		"--timeout", "5",
		"-o", "json")
	require.NoError(t, err)

	assert.Equal(t, []string{"remove_container abcd", "remove_volume v1"}, h.calls)
	assert.Equal(t, 5*time.Second, h.timeout)
	assert.True(t, h.closed)

	var report struct {
		Command string `json:"command"`
		Phases  []struct {
			Kind    string `json:"kind"`
			Removed int    `json:"removed"`
		} `json:"phases"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "gc", report.Command)
	require.Len(t, report.Phases, 2)
	assert.Equal(t, "container", report.Phases[0].Kind)
	assert.Equal(t, 1, report.Phases[0].Removed)
}

func TestGC_DryRunFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("TIDY_DRY_RUN", "true")
	t.Setenv("TIDY_GC_MAX_CONTAINER_AGE", "1 day")

	h := &fakeHost{}
	out, err := runCommand(t, h, "gc")
	require.NoError(t, err)
	assert.Empty(t, h.calls)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "container: planned 1, removed 0, failed 0")
}

func TestGC_FailOnError(t *testing.T) {
	isolate(t)

	h := &fakeHost{fail: true}
	out, err := runCommand(t, h, "gc", "--max-container-age", "1 day", "--fail-on-error")
	require.Error(t, err)
	assert.Equal(t, 4, exitCode(err))
	assert.Contains(t, out, "error calling operation")
	assert.Contains(t, out, "failed 1")
}

func TestGC_InvalidAge(t *testing.T) {
	isolate(t)

	h := &fakeHost{}
	_, err := runCommand(t, h, "gc", "--max-container-age", "soon")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
	assert.Empty(t, h.calls)
	assert.False(t, h.closed)
}

func TestGC_MetricsFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "tidy.prom")
	h := &fakeHost{}
	_, err := runCommand(t, h, "gc", "--dangling-volumes", "--metrics-file", path)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `docker_tidy_removed_total{kind="volume"} 1`)
	assert.Contains(t, string(b), "docker_tidy_last_run_timestamp_seconds")
}

func TestStop_Prefix(t *testing.T) {
	isolate(t)

	h := &fakeHost{}
	_, err := runCommand(t, h, "stop", "--max-run-time", "1 hour", "--prefix", "build-")
	require.NoError(t, err)
	assert.Equal(t, []string{"stop_container abbb"}, h.calls)
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := runCommand(t, &fakeHost{}, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "docker-tidy "))
}
