// Copyright 2026 The go-rainrfid Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// config is the effective runtime configuration after merging the
// config file and command-line flags.
type config struct {
	port            string
	dialect         string
	baudRate        int
	responseTimeout time.Duration
	maxAttempts     int
	accessPassword  uint32
}

func defaultRunConfig() config {
	return config{
		dialect:     "r200",
		baudRate:    115200,
		maxAttempts: 3,
	}
}

type fileConfig struct {
	Port            string `toml:"port"`
	Dialect         string `toml:"dialect"`
	ResponseTimeout string `toml:"response_timeout"`
	BaudRate        int    `toml:"baud_rate"`
	MaxAttempts     int    `toml:"max_attempts"`
	AccessPassword  int64  `toml:"access_password"`
}

// loadFileConfig merges a TOML config file into cfg. Only keys the file
// defines are applied, so flags and defaults survive a sparse file.
func loadFileConfig(path string, cfg *config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("port") {
		cfg.port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("dialect") {
		cfg.dialect = strings.TrimSpace(raw.Dialect)
	}
	if meta.IsDefined("baud_rate") {
		if raw.BaudRate <= 0 {
			return fmt.Errorf("invalid baud_rate %d", raw.BaudRate)
		}
		cfg.baudRate = raw.BaudRate
	}
	if meta.IsDefined("response_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ResponseTimeout))
		if err != nil {
			return fmt.Errorf("parse response_timeout: %w", err)
		}
		cfg.responseTimeout = d
	}
	if meta.IsDefined("max_attempts") {
		if raw.MaxAttempts <= 0 {
			return fmt.Errorf("invalid max_attempts %d", raw.MaxAttempts)
		}
		cfg.maxAttempts = raw.MaxAttempts
	}
	if meta.IsDefined("access_password") {
		if raw.AccessPassword < 0 || raw.AccessPassword > 0xFFFFFFFF {
			return fmt.Errorf("invalid access_password %d", raw.AccessPassword)
		}
		cfg.accessPassword = uint32(raw.AccessPassword)
	}
	return nil
}
