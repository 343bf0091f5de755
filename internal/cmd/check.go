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

	"github.com/spf13/cobra"

	"github.com/Zimbra/zm-mailbox-sub090/config"
	"github.com/Zimbra/zm-mailbox-sub090/log"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
	"github.com/Zimbra/zm-mailbox-sub090/scheduler"
)

type checkOptions struct {
	configFile string
	batchSize  int
	strict     bool
}

func newCheckCmd() *cobra.Command {
	opts := &checkOptions{}
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate an operation load configuration",
		Long: `Parse an operations XML file, report the malformed values that fell back
to defaults and print the budget of every priority level together with the
load of every configured operation for a sample batch size.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.OutOrStdout(), opts)
		},
	}
	flags := checkCmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "operations XML file")
	flags.IntVarP(&opts.batchSize, "batch", "b", 1, "sample batch size used to compute operation loads")
	flags.BoolVar(&opts.strict, "strict", false, "fail when the file has warnings")
	_ = checkCmd.MarkFlagRequired("config")
	return checkCmd
}

func runCheck(out io.Writer, opts *checkOptions) error {
	cfg, err := config.LoadFile(opts.configFile, log.DiscardLogger)
	if err != nil {
		return err
	}

	for _, warning := range cfg.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}

	params := scheduler.DefaultParams().Apply(cfg)
	if err := params.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(out, "target load: %d\n", params.TargetLoad)
	fmt.Fprintf(out, "%-18s %8s %14s\n", "PRIORITY", "BUDGET", "MAX_CONCURRENT")
	for _, level := range priority.All() {
		fmt.Fprintf(out, "%-18s %8d %14d\n", level, params.TargetLoadFor(level), params.MaxConcurrent[level.Index()])
	}

	fmt.Fprintf(out, "\n%-24s %8s %8s %8s %8s\n", "OPERATION", "LOAD", "MAX", "SCALE", fmt.Sprintf("B=%d", opts.batchSize))
	printSpec(out, "(default)", cfg.Default, opts.batchSize)
	for _, name := range cfg.OpNames() {
		printSpec(out, name, cfg.Ops[name], opts.batchSize)
	}

	if opts.strict && len(cfg.Warnings) > 0 {
		return fmt.Errorf("%s: %d warning(s)", opts.configFile, len(cfg.Warnings))
	}
	return nil
}

func printSpec(out io.Writer, name string, spec config.LoadSpec, batchSize int) {
	fmt.Fprintf(out, "%-24s %8d %8d %8d %8d\n", name, spec.Load, spec.MaxLoad, spec.Scale, spec.Compute(batchSize))
}
