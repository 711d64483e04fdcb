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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/numaproj/panestate/pkg/queries"
)

func NewQueriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queries",
		Short: "List the available queries",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range queries.Names() {
				q, _ := queries.Lookup(name)
				if q.Ordered {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (ordered backends only)\n", name)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
