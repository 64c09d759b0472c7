// Copyright 2025 BINARY Members
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

package logmap

import "time"

type Config struct {
	// DialTimeout bounds the websocket handshake.
	DialTimeout time.Duration

	// MaxRetries is the write-conflict budget. Exhausting it surfaces a
	// ConflictError; individual conflicts stay invisible to the caller.
	MaxRetries int
	// InitialBackoff is the first conflict-retry delay; each retry
	// multiplies it by BackoffFactor. No jitter.
	InitialBackoff time.Duration
	BackoffFactor  float64

	// RestartDelay spaces sync-worker re-bootstraps after a stream error.
	RestartDelay time.Duration
}

var DefaultConfig = Config{
	DialTimeout:    5 * time.Second,
	MaxRetries:     5,
	InitialBackoff: 100 * time.Millisecond,
	BackoffFactor:  2,
	RestartDelay:   500 * time.Millisecond,
}

func (c *Config) validate() error {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultConfig.DialTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultConfig.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultConfig.InitialBackoff
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = DefaultConfig.BackoffFactor
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = DefaultConfig.RestartDelay
	}
	return nil
}
