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

/*
Package config provides a simple way to manage verifier configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file is in yaml format. The top-level keys are the fields of [Options]; every key is
optional and a missing or zero value selects the built-in default. For example, a valid config
file is as follows:

	log-level: 4
	jobs: 8
	meter-units-per-function: 80000000
	max-basic-blocks: 1024
	max-loop-depth: 5

# Removing bounds

The numeric bounds can be removed rather than raised by setting them to a negative value:

	meter-units-per-function: -1
	max-loop-depth: -1

Verification of adversarial input can then take unbounded time, which is acceptable for
offline investigation but not on a validation path.
*/
package config
