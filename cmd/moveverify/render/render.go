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

// Package render implements a tool for rendering graph representations of compiled modules.
// -cgout Given a path for a .dot file, generates the call graph of the module in that file.
// -cfgout Given a path for a .dot file, generates the control flow graph of the
// function selected with -fn in that file.
package render

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"

	"github.com/aptos-labs/aptos-core-sub029/analysis"
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/controlflow"
	"github.com/aptos-labs/aptos-core-sub029/analysis/modfile"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/tools"
	"github.com/aptos-labs/aptos-core-sub029/internal/formatutil"
)

const usage = `Render graph representations of a compiled module.
Usage:
  moveverify render [options] <module file path>
Examples:
Render the call graph of a module
  % moveverify render -cgout coin.dot coin.mvb
Render the control flow graph of one function
  % moveverify render -fn transfer -cfgout transfer.dot coin.mvb
`

// Flags represents the parsed render sub-command flags.
type Flags struct {
	tools.CommonFlags
	cgOut  string
	cfgOut string
	fn     string
}

// NewFlags returns the parsed render sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("render")
	cgOut := flags.FlagSet.String("cgout", "", "output file for call graph (no output if not specified)")
	cfgOut := flags.FlagSet.String("cfgout", "", "output file for control flow graph (no output if not specified)")
	fn := flags.FlagSet.String("fn", "", "name of the function to render the control flow graph of")
	tools.SetUsage(flags.FlagSet, usage)
	if err := flags.FlagSet.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command render with args %v: %v", args, err)
	}

	return Flags{
		CommonFlags: tools.CommonFlags{
			FlagSet:    flags.FlagSet,
			ConfigPath: *flags.ConfigPath,
			Verbose:    *flags.Verbose,
		},
		cgOut:  *cgOut,
		cfgOut: *cfgOut,
		fn:     *fn,
	}, nil
}

// Run runs the render tool with flags.
func Run(flags Flags) error {
	paths := flags.FlagSet.Args()
	if len(paths) != 1 {
		return fmt.Errorf("expected exactly one module file, got %d", len(paths))
	}

	fmt.Fprintf(os.Stderr, formatutil.Faint("Reading module")+"\n")

	mod, err := modfile.Load(paths[0])
	if err != nil {
		return fmt.Errorf("could not load module: %v", err)
	}
	if err := mod.Validate(); err != nil {
		return fmt.Errorf("module %s has invalid tables: %v", paths[0], err)
	}

	if flags.cgOut != "" {
		fmt.Fprintf(os.Stderr, formatutil.Faint("Writing call graph in "+flags.cgOut+"\n"))

		cg := analysis.ComputeCallGraph(mod)
		if err := marshalToFile(cg.FlowGraph(), "callgraph", flags.cgOut); err != nil {
			return fmt.Errorf("could not print call graph: %v", err)
		}
	}

	if flags.cfgOut != "" {
		if flags.fn == "" {
			return fmt.Errorf("-cfgout requires a function selected with -fn")
		}
		view, err := findFunction(mod, flags.fn)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, formatutil.Faint("Writing control flow graph in "+flags.cfgOut+"\n"))

		if err := marshalToFile(controlflow.FlowGraph(view.CFG()), "cfg", flags.cfgOut); err != nil {
			return fmt.Errorf("could not print control flow graph: %v", err)
		}
	}

	return nil
}

func findFunction(mod *bytecode.CompiledModule, name string) (*bytecode.FunctionView, error) {
	for idx := range mod.Functions {
		if mod.FunctionHandles[mod.Functions[idx].Handle].Name != name {
			continue
		}
		view, err := bytecode.NewFunctionView(mod, bytecode.FunctionDefIndex(idx))
		if err != nil {
			return nil, err
		}
		if view.IsNative() {
			return nil, fmt.Errorf("function %s is native and has no control flow graph", name)
		}
		return view, nil
	}
	return nil, fmt.Errorf("module %s defines no function %s",
		formatutil.Sanitize(mod.Name), name)
}

func marshalToFile(g graph.Graph, name, path string) error {
	b, err := dot.Marshal(g, name, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
