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

package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Zimbra/zm-mailbox-sub090/config"
	"github.com/Zimbra/zm-mailbox-sub090/log"
)

// tunableFlags maps command line flags to tunable keys.
var tunableFlags = map[string]string{
	"max-concurrent":   config.KeyMaxConcurrent,
	"target-load":      config.KeyTargetLoad,
	"shards":           config.KeyShards,
	"lock-max-waiters": config.KeyLockMaxWaiters,
	"lock-timeout":     config.KeyLockTimeout,
	"session-history":  config.KeySessionHistory,
}

func newTunablesCmd() *cobra.Command {
	var (
		file     string
		logLevel string
	)
	tunablesCmd := &cobra.Command{
		Use:   "tunables",
		Short: "Print the resolved tunables",
		Long: `Resolve the scheduler and lock tunables from the built-in defaults, an
optional file, MBOX_ environment variables and flags, in increasing order of
precedence, and print them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(file)
			if err != nil {
				return err
			}
			if err := bindTunableFlags(v, cmd.Flags()); err != nil {
				return err
			}

			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger := log.NewZap(level, cmd.ErrOrStderr())
			printTunables(cmd.OutOrStdout(), config.LoadTunables(v, logger))
			return nil
		},
	}

	flags := tunablesCmd.Flags()
	flags.StringVarP(&file, "tunables", "t", "", "tunables file (yaml, json or toml)")
	flags.StringVar(&logLevel, "log-level", "off", "level of the log reporting values that fall back to defaults")
	flags.String("max-concurrent", "", "per priority concurrency limits, most urgent first")
	flags.Int("target-load", 0, "load budget of the least urgent priority")
	flags.Int("shards", 0, "number of scheduler shards")
	flags.Int("lock-max-waiters", 0, "maximum parked waiters per mailbox lock")
	flags.String("lock-timeout", "", "mailbox lock acquisition timeout")
	flags.Int("session-history", 0, "operations remembered per client session")
	return tunablesCmd
}

// bindTunableFlags binds the flags set on the command line. Unset flags are
// left out so they do not shadow the file and the environment.
func bindTunableFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range tunableFlags {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func printTunables(out io.Writer, tunables config.Tunables) {
	values := tunables.Map()
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "%s=%s\n", key, values[key])
	}
}
