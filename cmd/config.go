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

package cmd

import (
	"fmt"
	"os"

	"github.com/USA-RedDragon/configulator"
	"github.com/kevinbotlib/kbcomm/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the kbcomm configuration file",
	}
	cmd.AddCommand(newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file populated with defaults",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigInit(out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "kbcomm.yaml", "path to write the starter config to")
	return cmd
}

func runConfigInit(out string) error {
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite it", out)
	}

	defaults, err := configulator.New[config.Config]().Default()
	if err != nil {
		return fmt.Errorf("failed to compute default config: %w", err)
	}

	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	const configFileMode = 0o644
	if err := os.WriteFile(out, data, configFileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Printf("wrote starter configuration to %s\n", out)
	return nil
}
