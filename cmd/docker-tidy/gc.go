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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoogleCloudPlatform/docker-tidy/pkg/tidy"
)

func newGCCommand(v *viper.Viper, opts *rootOptions, hosts hostFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove stale containers, then unused images, then dangling volumes",
		Long: `Remove stopped containers that finished before --max-container-age,
images older than --max-image-age that no remaining container uses, and,
with --dangling-volumes, volumes no container refers to.

Ages are expressions such as "2 days ago", "3 hours", "1h30m" or an
absolute date. A phase without its option is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, v, opts, hosts, (*tidy.Cleaner).Clean)
		},
	}

	flags := cmd.Flags()
	flags.String("max-container-age", "", "Remove containers that finished before this age")
	flags.String("max-image-age", "", "Remove images created before this age")
	flags.Bool("dangling-volumes", false, "Remove dangling volumes")
	flags.StringArray("exclude-image", nil, "Never remove images with a tag matching this shell pattern, repeatable")
	flags.StringArray("exclude-container-label", nil, "Never remove containers with a label matching key[=value] shell patterns, repeatable")

	bindFlags(v, flags, map[string]string{
		"gc.max_container_age":        "max-container-age",
		"gc.max_image_age":            "max-image-age",
		"gc.dangling_volumes":         "dangling-volumes",
		"gc.exclude_images":           "exclude-image",
		"gc.exclude_container_labels": "exclude-container-label",
	})
	return cmd
}
