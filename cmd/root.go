// SPDX-License-Identifier: AGPL-3.0-or-later
// KBComm - an in-process-network key/value store with integrated pub/sub
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package cmd builds the kbcomm cobra CLI: the broker itself (serve), a
// starter config writer (config init), and a connectivity check (ping).
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand builds the kbcomm root command and wires its subcommands.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "kbcomm",
		Short:   "An in-process-network key/value store with integrated pub/sub",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newPingCommand())
	return cmd
}
