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

import "regexp"

// Captures errors happening before any verification starts (module file could not be read)
var regexCouldNotRead = regexp.MustCompile("modfile: read module")

// Captures the kind of error that happen when the file is not a module container
var regexNotAContainer = regexp.MustCompile("modfile: (unmarshal module|bad magic|envelope carries no module)")

// Captures container version mismatches
var regexBadVersion = regexp.MustCompile("modfile: unsupported version")

// Captures verifications that ran out of metering budget
var regexTooComplex = regexp.MustCompile("PROGRAM_TOO_COMPLEX")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if regexCouldNotRead.MatchString(errMsg) {
		return "check that the path points to a compiled module file; all command line flags should be before the module paths"
	}
	if regexBadVersion.MatchString(errMsg) {
		return "the module container was written by a different toolchain version; recompile the module"
	}
	if regexNotAContainer.MatchString(errMsg) {
		return "the file is not a compiled module container; this tool reads the .mvb format"
	}
	if regexTooComplex.MatchString(errMsg) {
		return "the verifier ran out of metering budget; raise meter-units-per-function or meter-units-per-module in the config file"
	}
	return ""
}
