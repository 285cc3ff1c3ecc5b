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

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aptos-labs/aptos-core-sub029/analysis"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/disasm"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/render"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/stats"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/tools"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/verify"
)

const usage = `Moveverify: Move bytecode verification tools
Usage:
  moveverify [tool] [options] <module file path(s)>
Tools:
  - verify: checks control flow structure and reference safety of compiled modules
  - disasm: prints an annotated bytecode listing of compiled modules
  - render: renders a graph representation of the call graph or of a function's control flow
  - stats: prints statistics about the code of compiled modules
Examples:
  Verify two modules: moveverify verify -config config.yaml coin.mvb bank.mvb
  Disassemble a module: moveverify disasm coin.mvb`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "verify":
		flags, err := verify.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := verify.Run(flags); err != nil {
			if errors.Is(err, verify.ErrRejected) {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			errExit(err)
		}
	case "disasm":
		flags, err := tools.NewCommonFlags("disasm", args, disasm.Usage)
		if err != nil {
			errExit(err)
		}
		if err := disasm.Run(flags); err != nil {
			errExit(err)
		}
	case "render":
		flags, err := render.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := render.Run(flags); err != nil {
			errExit(err)
		}
	case "stats":
		flags, err := stats.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := stats.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
