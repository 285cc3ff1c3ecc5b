// Copyright © Aptos Foundation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package verify implements the front-end for the module verifier.
package verify

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aptos-labs/aptos-core-sub029/analysis"
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/config"
	"github.com/aptos-labs/aptos-core-sub029/analysis/modfile"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/tools"
	"github.com/aptos-labs/aptos-core-sub029/internal/formatutil"
)

const usage = ` Verify compiled modules.
Usage:
  moveverify verify [options] <module file path(s)>
Examples:
  % moveverify verify -config config.yaml coin.mvb bank.mvb
`

// ErrRejected is returned when at least one module failed verification. The
// main frontend maps it to a distinct exit code so scripts can tell a
// rejection from an operational error.
var ErrRejected = errors.New("verification failed")

// Flags represents the parsed flags for the verify sub-command.
type Flags struct {
	tools.CommonFlags
	jobs int
}

// NewFlags returns the parsed flags for the verify sub-command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("verify")
	jobs := flags.FlagSet.Int("jobs", 0, "override the number of parallel verification jobs in config")
	tools.SetUsage(flags.FlagSet, usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command verify with args %v: %v", args, err)
	}

	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			Verbose:    *flags.Verbose,
		},
		jobs: *jobs,
	}, nil
}

// Run verifies every module file named in the flags.
func Run(flags Flags) error {
	logger := log.New(os.Stdout, "", log.Flags())

	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}

	// Override config parameters with command-line parameters
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if flags.jobs > 0 {
		cfg.Jobs = flags.jobs
	}

	paths := flags.FlagSet.Args()
	if len(paths) == 0 {
		return fmt.Errorf("expected module file(s) to verify")
	}

	logger.Printf(formatutil.Faint("Moveverify verify tool - " + analysis.Version))
	logger.Printf(formatutil.Faint("Reading modules") + "\n")

	logGroup := config.NewLogGroup(cfg)
	rejected := 0
	for _, path := range paths {
		mod, err := modfile.Load(path)
		if err != nil {
			return fmt.Errorf("could not load module: %v", err)
		}
		name := formatutil.Sanitize(mod.Name)

		start := time.Now()
		verifyErr := analysis.VerifyModule(cfg, logGroup, mod)
		duration := time.Since(start)
		if verifyErr == nil {
			logger.Printf("%-30s %s (%.3f s)", name, formatutil.Green("verified ✓"), duration.Seconds())
			continue
		}
		rejected++
		verdict := formatutil.Red("REJECTED")
		if bytecode.CodeOf(verifyErr) == bytecode.StatusProgramTooComplex {
			// A blown budget is an operational limit, not unsafe code.
			verdict = formatutil.Yellow("OVER BUDGET")
		}
		logger.Printf("%-30s %s (%.3f s)", name, verdict, duration.Seconds())
		logger.Printf("\t%s", formatutil.Sanitize(verifyErr.Error())) // safe %s
	}

	logger.Printf(formatutil.Bold(fmt.Sprintf("%d of %d modules verified", len(paths)-rejected, len(paths))))
	if rejected > 0 {
		return fmt.Errorf("%w for %d of %d modules", ErrRejected, rejected, len(paths))
	}
	return nil
}
