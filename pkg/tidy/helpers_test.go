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

package tidy

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2014, time.January, 20, 10, 10, 0, 0, time.UTC)

func mustPolicy(tb testing.TB, cfg *PolicyConfig) *Policy {
	tb.Helper()

	p, err := NewPolicy(cfg, testNow)
	if err != nil {
		tb.Fatal(err)
	}
	return p
}

func finished(at time.Time) *ContainerState {
	return &ContainerState{FinishedAt: at}
}

func running(since time.Time) *ContainerState {
	return &ContainerState{Running: true, StartedAt: since}
}

func containerIDs(cs []*Container) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}

func imageIDs(is []*Image) []string {
	ids := make([]string, 0, len(is))
	for _, i := range is {
		ids = append(ids, i.ID)
	}
	return ids
}

// fakeInventory serves records from memory. Inspect calls return a copy of
// the listed record unless an override or an error is configured.
type fakeInventory struct {
	version string

	containers []*Container
	images     []*Image
	volumes    []*Volume

	inspected map[string]*Container
	errs      map[string]error

	mu    sync.Mutex
	calls []string
}

func (f *fakeInventory) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.errs[call]
}

func (f *fakeInventory) APIVersion(ctx context.Context) (string, error) {
	if err := f.record("version"); err != nil {
		return "", err
	}
	return f.version, nil
}

func (f *fakeInventory) ListContainers(ctx context.Context, all bool) ([]*Container, error) {
	if err := f.record(fmt.Sprintf("list_containers all=%t", all)); err != nil {
		return nil, err
	}
	if all {
		return f.containers, nil
	}
	var out []*Container
	for _, c := range f.containers {
		if c.Running() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeInventory) InspectContainer(ctx context.Context, id string) (*Container, error) {
	if err := f.record("inspect_container " + id); err != nil {
		return nil, err
	}
	if c, ok := f.inspected[id]; ok {
		return c, nil
	}
	for _, c := range f.containers {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrInspectMiss
}

func (f *fakeInventory) ListImages(ctx context.Context) ([]*Image, error) {
	if err := f.record("list_images"); err != nil {
		return nil, err
	}
	return f.images, nil
}

func (f *fakeInventory) InspectImage(ctx context.Context, id string) (*Image, error) {
	if err := f.record("inspect_image " + id); err != nil {
		return nil, err
	}
	for _, i := range f.images {
		if i.ID == id {
			cp := *i
			return &cp, nil
		}
	}
	return nil, ErrInspectMiss
}

func (f *fakeInventory) ListDanglingVolumes(ctx context.Context) ([]*Volume, error) {
	if err := f.record("list_volumes"); err != nil {
		return nil, err
	}
	return f.volumes, nil
}

// fakeSink records every call in order and fails the ones listed in errs.
type fakeSink struct {
	errs map[string]error

	mu    sync.Mutex
	calls []string
}

func (s *fakeSink) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.errs[call]
}

func (s *fakeSink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSink) RemoveContainer(ctx context.Context, id string) error {
	return s.record("remove_container " + id)
}

func (s *fakeSink) RemoveImage(ctx context.Context, ref string) error {
	return s.record("remove_image " + ref)
}

func (s *fakeSink) RemoveVolume(ctx context.Context, name string) error {
	return s.record("remove_volume " + name)
}

func (s *fakeSink) StopContainer(ctx context.Context, id string) error {
	return s.record("stop_container " + id)
}
