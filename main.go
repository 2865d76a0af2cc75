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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/USA-RedDragon/configulator"
	"github.com/kevinbotlib/kbcomm/cmd"
	"github.com/kevinbotlib/kbcomm/internal/config"
	"github.com/kevinbotlib/kbcomm/internal/sdk"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := cmd.NewCommand(sdk.Version, sdk.GitCommit)

	cfg := configulator.New[config.Config]()
	ctx := cfg.ToContext(context.Background())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
