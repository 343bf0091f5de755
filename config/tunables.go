// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Zimbra/zm-mailbox-sub090/log"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
)

// Tunable keys. Environment variables use the MBOX_ prefix with dots replaced
// by underscores, e.g. MBOX_LOCK_MAX_WAITERS.
const (
	KeyMaxConcurrent  = "scheduler.max_concurrent"
	KeyTargetLoad     = "scheduler.target_load"
	KeyShards         = "scheduler.shards"
	KeyLockMaxWaiters = "lock.max_waiters"
	KeyLockTimeout    = "lock.timeout"
	KeySessionHistory = "session.history"

	envPrefix = "MBOX"
)

const (
	DefaultShards         = 1
	DefaultLockMaxWaiters = 15
	DefaultSessionHistory = 5
	MinSessionHistory     = 3
)

// Tunables are the operator settings read at startup.
type Tunables struct {
	MaxConcurrent  [priority.Count]int
	TargetLoad     int
	Shards         int
	LockMaxWaiters int
	LockTimeout    time.Duration
	SessionHistory int
}

// DefaultTunables returns the built-in settings.
func DefaultTunables() Tunables {
	return Tunables{
		MaxConcurrent:  DefaultMaxConcurrent,
		TargetLoad:     DefaultTargetLoad,
		Shards:         DefaultShards,
		LockMaxWaiters: DefaultLockMaxWaiters,
		SessionHistory: DefaultSessionHistory,
	}
}

// NewViper returns a viper instance bound to the MBOX_ environment and, when
// configFile is not empty, to that file.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read tunables from %s: %w", configFile, err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultTunables()
	v.SetDefault(KeyMaxConcurrent, FormatMaxConcurrent(defaults.MaxConcurrent))
	v.SetDefault(KeyTargetLoad, defaults.TargetLoad)
	v.SetDefault(KeyShards, defaults.Shards)
	v.SetDefault(KeyLockMaxWaiters, defaults.LockMaxWaiters)
	v.SetDefault(KeyLockTimeout, defaults.LockTimeout.String())
	v.SetDefault(KeySessionHistory, defaults.SessionHistory)
}

// LoadTunables resolves the tunables from v on top of the defaults.
func LoadTunables(v *viper.Viper, logger log.Logger) Tunables {
	return DefaultTunables().Merge(v, logger)
}

// Merge returns t updated with the values set in v. A value that cannot be
// parsed is logged and the current one kept.
func (t Tunables) Merge(v *viper.Viper, logger log.Logger) Tunables {
	if logger == nil {
		logger = log.DiscardLogger
	}

	if raw := v.GetString(KeyMaxConcurrent); raw != "" {
		table, err := ParseMaxConcurrent(raw)
		if err != nil {
			logger.Warnf("%v, keeping %s", err, FormatMaxConcurrent(t.MaxConcurrent))
		} else {
			t.MaxConcurrent = table
		}
	}

	t.TargetLoad = mergeInt(v, logger, KeyTargetLoad, t.TargetLoad, 1, MaxTargetLoad)
	t.Shards = mergeInt(v, logger, KeyShards, t.Shards, 1, math.MaxInt)
	t.LockMaxWaiters = mergeInt(v, logger, KeyLockMaxWaiters, t.LockMaxWaiters, 1, math.MaxInt)
	t.SessionHistory = mergeInt(v, logger, KeySessionHistory, t.SessionHistory, MinSessionHistory, math.MaxInt)

	if raw := strings.TrimSpace(v.GetString(KeyLockTimeout)); raw != "" {
		timeout, err := parseTimeout(raw)
		if err != nil || timeout < 0 {
			logger.Warnf("invalid tunable %s=%q, keeping %s", KeyLockTimeout, raw, t.LockTimeout)
		} else {
			t.LockTimeout = timeout
		}
	}

	return t
}

// Map returns the tunables keyed by their configuration key.
func (t Tunables) Map() map[string]string {
	return map[string]string{
		KeyMaxConcurrent:  FormatMaxConcurrent(t.MaxConcurrent),
		KeyTargetLoad:     strconv.Itoa(t.TargetLoad),
		KeyShards:         strconv.Itoa(t.Shards),
		KeyLockMaxWaiters: strconv.Itoa(t.LockMaxWaiters),
		KeyLockTimeout:    t.LockTimeout.String(),
		KeySessionHistory: strconv.Itoa(t.SessionHistory),
	}
}

func mergeInt(v *viper.Viper, logger log.Logger, key string, current, minimum, maximum int) int {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return current
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minimum || n > maximum {
		logger.Warnf("invalid tunable %s=%q, keeping %d", key, raw, current)
		return current
	}
	return n
}

// parseTimeout accepts a Go duration or a plain number of milliseconds.
func parseTimeout(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
