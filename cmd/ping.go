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
	"time"

	"github.com/kevinbotlib/kbcomm/client"
	"github.com/spf13/cobra"
)

func newPingCommand() *cobra.Command {
	var host string
	var port int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Connect to a broker and measure round-trip latency",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPing(host, port, timeout)
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "broker host")
	cmd.Flags().IntVar(&port, "port", 8888, "broker SETGET port")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "dial and round-trip timeout")
	return cmd
}

func runPing(host string, port int, timeout time.Duration) error {
	c := client.New(host, port, client.WithTimeout(timeout))
	if err := c.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}
	defer c.Close()

	latency, err := c.GetLatency()
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	fmt.Printf("PONG from %s:%d in %s\n", host, port, latency)
	return nil
}
