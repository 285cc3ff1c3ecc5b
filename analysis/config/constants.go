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

package config

const (
	// DefaultJobs keeps verification sequential unless the user asks for more.
	DefaultJobs = 1
	// DefaultMeterUnitsPerFunction is the metering budget of one function.
	DefaultMeterUnitsPerFunction = 80_000_000
	// DefaultMeterUnitsPerModule is the metering budget of a whole module.
	DefaultMeterUnitsPerModule = 80_000_000
	// DefaultMaxBasicBlocks bounds the basic blocks of one code unit.
	DefaultMaxBasicBlocks = 1024
	// DefaultMaxLoopDepth bounds the loop nesting depth of one code unit.
	DefaultMaxLoopDepth = 5
	// DefaultMaxParameters bounds the parameter count of one function.
	DefaultMaxParameters = 128
	// DefaultMaxLocals matches the number of frame slots the bytecode can
	// address.
	DefaultMaxLocals = 256
)
