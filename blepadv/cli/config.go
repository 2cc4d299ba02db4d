/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/structs"
	"github.com/spf13/cobra"

	"mynewt.apache.org/blepadv/blepadv/bputil"
	"mynewt.apache.org/blepadv/blepadv/config"
)

// Flattens a nested settings map into "section.key" entries.
func flattenSettings(prefix string, m map[string]interface{},
	out map[string]interface{}) {

	for k, v := range m {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}

		if sub, ok := v.(map[string]interface{}); ok {
			flattenSettings(name, sub, out)
		} else {
			out[name] = v
		}
	}
}

func settingLines(cfg *config.Config) []string {
	flat := map[string]interface{}{}
	flattenSettings("", structs.Map(cfg), flat)

	names := make([]string, 0, len(flat))
	for k := range flat {
		names = append(names, k)
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = fmt.Sprintf("%s: %v", n, flat[n])
	}

	return lines
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Display the effective configuration",
		Example: "  " + bputil.ToolInfo.ExeName + " config\n" +
			"  " + bputil.ToolInfo.ExeName + " config --config ./padv.yml",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			for _, l := range settingLines(cfg) {
				fmt.Println(l)
			}
		},
	}
}
