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

// Package disasm implements the front-end to the disassembler.
package disasm

import (
	"fmt"
	"os"

	"github.com/aptos-labs/aptos-core-sub029/analysis/disasm"
	"github.com/aptos-labs/aptos-core-sub029/analysis/modfile"
	"github.com/aptos-labs/aptos-core-sub029/cmd/moveverify/tools"
	"github.com/aptos-labs/aptos-core-sub029/internal/formatutil"
)

// Usage for CLI
const Usage = `Print an annotated listing of compiled modules.
Usage:
  moveverify disasm [options] <module file path(s)>`

// Run prints the listing of every module file named in the flags.
func Run(flags tools.CommonFlags) error {
	paths := flags.FlagSet.Args()
	if len(paths) == 0 {
		return fmt.Errorf("expected module file(s) to disassemble")
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
		listing, err := disasm.Module(mod)
		if err != nil {
			return fmt.Errorf("could not disassemble module %s: %v", path, err)
		}
		fmt.Print(listing)
	}
	return nil
}
