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

// Package analysis contains the entry points for running the verification
// passes over compiled modules.
package analysis

import (
	"time"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/config"
	"github.com/aptos-labs/aptos-core-sub029/analysis/controlflow"
	"github.com/aptos-labs/aptos-core-sub029/analysis/meter"
	"github.com/aptos-labs/aptos-core-sub029/analysis/refsafety"
	"github.com/aptos-labs/aptos-core-sub029/internal/funcutil"
)

// Version is the version of the moveverify tools.
const Version = "v0.2.0"

// ControlFlowLimits returns the structural limits the configuration selects.
func ControlFlowLimits(cfg *config.Config) controlflow.Limits {
	return controlflow.Limits{
		MaxBasicBlocks: config.Bound(cfg.MaxBasicBlocks),
		MaxLoopDepth:   config.Bound(cfg.MaxLoopDepth),
		MaxParameters:  config.Bound(cfg.MaxParameters),
		MaxLocals:      config.Bound(cfg.MaxLocals),
	}
}

// MeterLimits returns the metering budgets the configuration selects.
func MeterLimits(cfg *config.Config) meter.Limits {
	return meter.Limits{
		FunctionUnits: config.MeterBudget(cfg.MeterUnitsPerFunction),
		ModuleUnits:   config.MeterBudget(cfg.MeterUnitsPerModule),
	}
}

// VerifyModule checks every function of mod against the configured structural
// limits and the reference-safety rules, under the configured metering
// budgets. The first failure is returned, attributed to its function and
// offset; a nil result means the whole module verified.
func VerifyModule(cfg *config.Config, log *config.LogGroup, mod *bytecode.CompiledModule) error {
	if cfg.Jobs > 1 {
		return verifyParallel(cfg, log, mod)
	}
	return VerifyModuleWithMeter(cfg, log, mod, meter.NewBoundMeter(MeterLimits(cfg)))
}

// VerifyModuleWithMeter verifies mod sequentially, charging all work to m.
// Callers that want their own accounting, or none at all, pass the meter
// explicitly; VerifyModule builds the configured one.
func VerifyModuleWithMeter(cfg *config.Config, log *config.LogGroup, mod *bytecode.CompiledModule, m meter.Meter) error {
	log.Infof("Verifying module %q (%d functions) ...", mod.Name, len(mod.Functions))
	start := time.Now()
	if err := mod.Validate(); err != nil {
		return err
	}
	limits := ControlFlowLimits(cfg)

	m.EnterScope(mod.Name, meter.ScopeModule)
	for idx := range mod.Functions {
		view, err := bytecode.NewFunctionView(mod, bytecode.FunctionDefIndex(idx))
		if err != nil {
			return err
		}
		m.EnterScope(view.Name(), meter.ScopeFunction)
		if err := verifyFunction(log, view, limits, m); err != nil {
			return err
		}
		if err := m.Transfer(meter.ScopeFunction, meter.ScopeModule, 1); err != nil {
			return moduleComplexity(err, idx)
		}
	}

	log.Infof("Module %q verified (%.2f s).", mod.Name, time.Since(start).Seconds())
	return nil
}

// functionOutcome is the result of one function verification job.
type functionOutcome struct {
	function int
	units    uint64
	err      error
}

// verifyParallel fans the per-function work out over cfg.Jobs goroutines.
// Each job runs under its own function-scope meter; the spent units fold into
// the module scope in definition order afterwards, so the module budget trips
// at the same function no matter how the jobs were scheduled.
func verifyParallel(cfg *config.Config, log *config.LogGroup, mod *bytecode.CompiledModule) error {
	log.Infof("Verifying module %q (%d functions, %d jobs) ...", mod.Name, len(mod.Functions), cfg.Jobs)
	start := time.Now()
	if err := mod.Validate(); err != nil {
		return err
	}
	limits := ControlFlowLimits(cfg)
	budget := meter.Limits{FunctionUnits: config.MeterBudget(cfg.MeterUnitsPerFunction)}

	views := make([]*bytecode.FunctionView, len(mod.Functions))
	for idx := range mod.Functions {
		view, err := bytecode.NewFunctionView(mod, bytecode.FunctionDefIndex(idx))
		if err != nil {
			return err
		}
		views[idx] = view
	}

	outcomes := funcutil.MapParallel(views, func(view *bytecode.FunctionView) functionOutcome {
		m := meter.NewBoundMeter(budget)
		m.EnterScope(view.Name(), meter.ScopeFunction)
		err := verifyFunction(log, view, limits, m)
		return functionOutcome{
			function: int(view.Index()),
			units:    m.Units(meter.ScopeFunction),
			err:      err,
		}
	}, cfg.Jobs)

	moduleMeter := meter.NewBoundMeter(meter.Limits{ModuleUnits: config.MeterBudget(cfg.MeterUnitsPerModule)})
	moduleMeter.EnterScope(mod.Name, meter.ScopeModule)
	for _, outcome := range outcomes {
		if outcome.err != nil {
			return outcome.err
		}
		if err := moduleMeter.Add(meter.ScopeModule, outcome.units); err != nil {
			return moduleComplexity(err, outcome.function)
		}
	}

	log.Infof("Module %q verified (%.2f s).", mod.Name, time.Since(start).Seconds())
	return nil
}

// verifyFunction runs the per-function passes in order: control-flow
// structure first, then reference safety.
func verifyFunction(log *config.LogGroup, view *bytecode.FunctionView, limits controlflow.Limits, m meter.Meter) error {
	start := time.Now()
	if err := controlflow.Verify(view, limits); err != nil {
		return err
	}
	if err := refsafety.Verify(view, m); err != nil {
		return err
	}
	log.Debugf("%-10sFunc: %-30s | %10d units | %.2f s",
		"Verified", view.Name(), m.Units(meter.ScopeFunction), time.Since(start).Seconds())
	return nil
}

// moduleComplexity pins the module-budget error to the function whose
// spending tripped it.
func moduleComplexity(err error, function int) error {
	if vmErr, ok := bytecode.AsVMError(err); ok {
		return vmErr.AtFunction(function)
	}
	return err
}
