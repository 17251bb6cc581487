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

func newStopCommand(v *viper.Viper, opts *rootOptions, hosts hostFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop containers that have been running longer than --max-run-time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, v, opts, hosts, (*tidy.Cleaner).Stop)
		},
	}

	flags := cmd.Flags()
	flags.String("max-run-time", "", "Stop containers started before this age")
	flags.StringArray("prefix", nil, "Only stop containers whose name starts with this prefix, repeatable")

	bindFlags(v, flags, map[string]string{
		"stop.max_run_time": "max-run-time",
		"stop.prefix":       "prefix",
	})
	return cmd
}
