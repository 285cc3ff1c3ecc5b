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

// Package stats implements the front-end for the module statistics analysis.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/aptos-labs/aptos-core-sub029/analysis"
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/modfile"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/tools"
	"github.com/aptos-labs/aptos-core-sub029/internal/formatutil"
	"github.com/aptos-labs/aptos-core-sub029/internal/funcutil"
)

const usage = `Compute code statistics for compiled modules.

Usage:
  moveverify stats module.mvb...

Use the -help flag to display the options.

Examples:
% moveverify stats coin.mvb
`

// Flags represents the flags for the stats sub-command.
type Flags struct {
	tools.CommonFlags
	outputJson bool
	showCycles bool
}

// NewFlags returns parsed flags for stats.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("stats")
	outputJson := flags.FlagSet.Bool("json", false, "output results as JSON")
	showCycles := flags.FlagSet.Bool("cycles", false, "list every elementary cycle of the call graph")
	tools.SetUsage(flags.FlagSet, usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command stats with args %v: %v", args, err)
	}

	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			Verbose:    *flags.Verbose,
		},
		outputJson: *outputJson,
		showCycles: *showCycles,
	}, nil
}

// Run runs the statistics analysis on every module file named in the flags.
func Run(flags Flags) error {
	paths := flags.FlagSet.Args()
	if len(paths) == 0 {
		return fmt.Errorf("expected module file(s)")
	}

	fmt.Fprintf(os.Stderr, formatutil.Faint("Reading modules")+"\n")

	for _, path := range paths {
		mod, err := modfile.Load(path)
		if err != nil {
			return fmt.Errorf("could not load module: %v", err)
		}
		if err := mod.Validate(); err != nil {
			return fmt.Errorf("module %s has invalid tables: %v", path, err)
		}
		report(mod, flags)
	}
	return nil
}

func report(mod *bytecode.CompiledModule, flags Flags) {
	result := analysis.ModuleStatistics(mod)
	if flags.outputJson {
		buf, _ := json.Marshal(result)
		fmt.Println(string(buf))
		return
	}

	fmt.Printf("Module %s:\n", formatutil.Sanitize(mod.Name))
	fmt.Printf("Number of functions: %d\n", result.NumberOfFunctions)
	fmt.Printf("Number of native functions: %d\n", result.NumberOfNativeFunctions)
	fmt.Printf("Number of blocks: %d\n", result.NumberOfBlocks)
	fmt.Printf("Number of instructions: %d\n", result.NumberOfInstructions)

	histogram := analysis.OpcodeHistogram(mod)
	opcodes := maps.Keys(histogram)
	slices.Sort(opcodes)
	fmt.Printf("Opcodes:\n")
	for _, op := range opcodes {
		fmt.Printf("  %-20s %d\n", op, histogram[op])
	}

	if acquired := analysis.AcquiredResources(mod); len(acquired) > 0 {
		names := funcutil.Map(acquired, func(idx bytecode.StructDefIndex) string {
			return formatutil.Sanitize(mod.Structs[idx].Name)
		})
		fmt.Printf("Acquired resources: %s\n", strings.Join(names, ", "))
	}

	callGraph := analysis.ComputeCallGraph(mod)
	for _, group := range callGraph.RecursiveGroups() {
		names := funcutil.Map(group, func(fn bytecode.FunctionDefIndex) string {
			return formatutil.Sanitize(mod.FunctionHandles[mod.Functions[fn].Handle].Name)
		})
		fmt.Printf("Recursive group: {%s}\n", strings.Join(names, ", "))
	}
	if flags.showCycles {
		for _, cycle := range callGraph.Cycles() {
			names := funcutil.Map(cycle, func(fn bytecode.FunctionDefIndex) string {
				return formatutil.Sanitize(mod.FunctionHandles[mod.Functions[fn].Handle].Name)
			})
			fmt.Printf("Call cycle: %s\n", strings.Join(names, " -> "))
		}
	}
}
