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

package tools

import (
	"strings"
	"testing"
)

func validateHint(t *testing.T, errorMsg string, containedHint string) {
	hint := HintForErrorMessage(errorMsg)
	if !strings.Contains(hint, containedHint) {
		t.Fatalf("incorrect hint; check and update error message if necessary")
	}
}

func TestHintForUnreadableModule(t *testing.T) {
	errorMsg := "error: could not load module: modfile: read module: open -v: no such file or directory"
	containedHint := "check that the path points to a compiled module file"
	validateHint(t, errorMsg, containedHint)
}

func TestHintForBadMagic(t *testing.T) {
	errorMsg := "error: could not load module: modfile: bad magic \"GOBC\", want \"MVBC\""
	containedHint := "not a compiled module container"
	validateHint(t, errorMsg, containedHint)
}

func TestHintForBadVersion(t *testing.T) {
	errorMsg := "error: could not load module: modfile: unsupported version 2, want 1"
	containedHint := "written by a different toolchain version"
	validateHint(t, errorMsg, containedHint)
}

func TestHintForMeterBudget(t *testing.T) {
	errorMsg := "error: PROGRAM_TOO_COMPLEX: program too complex (in module \"m\", 90 units) (function 2)"
	containedHint := "raise meter-units-per-function or meter-units-per-module"
	validateHint(t, errorMsg, containedHint)
}
