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

package bytecode

import (
	"errors"
	"fmt"
)

// StatusCode identifies why the verifier rejected a module. The numeric values
// are stable so that tooling can match on them across versions.
type StatusCode int

const (
	// StatusUnknown is the zero value. It never appears in a well-formed error.
	StatusUnknown StatusCode = iota

	// StatusUnknownInvariantViolation reports a broken internal invariant of the
	// verifier itself, for example an abstract reference id that is not live.
	// A module that triggers one of these was malformed in a way the earlier
	// passes should have caught.
	StatusUnknownInvariantViolation

	// StatusProgramTooComplex reports that verification ran out of metering budget.
	StatusProgramTooComplex

	// Reference safety.
	StatusCopyLocExistsBorrowError
	StatusMoveLocExistsBorrowError
	StatusStLocUnsafeToDestroyError
	StatusFreezeRefExistsMutableBorrowError
	StatusReadRefExistsMutableBorrowError
	StatusWriteRefExistsBorrowError
	StatusBorrowLocExistsBorrowError
	StatusBorrowFieldExistsMutableBorrowError
	StatusGlobalReferenceError
	StatusVecUpdateExistsMutableBorrowError
	StatusVecBorrowElementExistsMutableBorrowError
	StatusCallBorrowedMutableReferenceError
	StatusUnsafeRetLocalOrResourceStillBorrowed
	StatusRetBorrowedMutableReferenceError

	// Control-flow structure.
	StatusEmptyCodeUnit
	StatusInvalidFallThrough
	StatusTooManyBasicBlocks
	StatusLoopMaxDepthReached
	StatusTooManyLocals
	StatusTooManyParameters

	// Table well-formedness.
	StatusIndexOutOfBounds
	StatusDuplicateElement
)

var statusNames = map[StatusCode]string{
	StatusUnknown:                                  "UNKNOWN_STATUS",
	StatusUnknownInvariantViolation:                "UNKNOWN_INVARIANT_VIOLATION_ERROR",
	StatusProgramTooComplex:                        "PROGRAM_TOO_COMPLEX",
	StatusCopyLocExistsBorrowError:                 "COPYLOC_EXISTS_BORROW_ERROR",
	StatusMoveLocExistsBorrowError:                 "MOVELOC_EXISTS_BORROW_ERROR",
	StatusStLocUnsafeToDestroyError:                "STLOC_UNSAFE_TO_DESTROY_ERROR",
	StatusFreezeRefExistsMutableBorrowError:        "FREEZEREF_EXISTS_MUTABLE_BORROW_ERROR",
	StatusReadRefExistsMutableBorrowError:          "READREF_EXISTS_MUTABLE_BORROW_ERROR",
	StatusWriteRefExistsBorrowError:                "WRITEREF_EXISTS_BORROW_ERROR",
	StatusBorrowLocExistsBorrowError:               "BORROWLOC_EXISTS_BORROW_ERROR",
	StatusBorrowFieldExistsMutableBorrowError:      "BORROWFIELD_EXISTS_MUTABLE_BORROW_ERROR",
	StatusGlobalReferenceError:                     "GLOBAL_REFERENCE_ERROR",
	StatusVecUpdateExistsMutableBorrowError:        "VEC_UPDATE_EXISTS_MUTABLE_BORROW_ERROR",
	StatusVecBorrowElementExistsMutableBorrowError: "VEC_BORROW_ELEMENT_EXISTS_MUTABLE_BORROW_ERROR",
	StatusCallBorrowedMutableReferenceError:        "CALL_BORROWED_MUTABLE_REFERENCE_ERROR",
	StatusUnsafeRetLocalOrResourceStillBorrowed:    "UNSAFE_RET_LOCAL_OR_RESOURCE_STILL_BORROWED",
	StatusRetBorrowedMutableReferenceError:         "RET_BORROWED_MUTABLE_REFERENCE_ERROR",
	StatusEmptyCodeUnit:                            "EMPTY_CODE_UNIT",
	StatusInvalidFallThrough:                       "INVALID_FALL_THROUGH",
	StatusTooManyBasicBlocks:                       "TOO_MANY_BASIC_BLOCKS",
	StatusLoopMaxDepthReached:                      "LOOP_MAX_DEPTH_REACHED",
	StatusTooManyLocals:                            "TOO_MANY_LOCALS",
	StatusTooManyParameters:                        "TOO_MANY_PARAMETERS",
	StatusIndexOutOfBounds:                         "INDEX_OUT_OF_BOUNDS",
	StatusDuplicateElement:                         "DUPLICATE_ELEMENT",
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// IsInvariantViolation reports whether the status indicates a bug in the
// verifier or its input tables rather than an unsafe program.
func (s StatusCode) IsInvariantViolation() bool {
	return s == StatusUnknownInvariantViolation
}

// NoFunction and NoOffset are the sentinel location values of a VMError that
// has not been attributed to a code point.
const (
	NoFunction = -1
	NoOffset   = -1
)

// VMError is a structured verification failure. Function is a function
// definition index and Offset an instruction offset within that function,
// when known.
type VMError struct {
	Code     StatusCode
	Message  string
	Function int
	Offset   int
}

// NewVMError creates an unattributed error with the given status.
func NewVMError(code StatusCode, message string) *VMError {
	return &VMError{Code: code, Message: message, Function: NoFunction, Offset: NoOffset}
}

// NewVMErrorf creates an unattributed error with a formatted message.
func NewVMErrorf(code StatusCode, format string, args ...any) *VMError {
	return NewVMError(code, fmt.Sprintf(format, args...))
}

// AtFunction attributes the error to a function definition and returns it.
func (e *VMError) AtFunction(function int) *VMError {
	e.Function = function
	return e
}

// AtCodeOffset attributes the error to an instruction within a function and
// returns it.
func (e *VMError) AtCodeOffset(function int, offset int) *VMError {
	e.Function = function
	e.Offset = offset
	return e
}

func (e *VMError) Error() string {
	msg := e.Code.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	switch {
	case e.Function >= 0 && e.Offset >= 0:
		return fmt.Sprintf("%s (function %d, offset %d)", msg, e.Function, e.Offset)
	case e.Function >= 0:
		return fmt.Sprintf("%s (function %d)", msg, e.Function)
	default:
		return msg
	}
}

// AsVMError unwraps err to a *VMError if one is in its chain.
func AsVMError(err error) (*VMError, bool) {
	var vmErr *VMError
	if errors.As(err, &vmErr) {
		return vmErr, true
	}
	return nil, false
}

// CodeOf returns the status code of err, or StatusUnknown if err carries none.
func CodeOf(err error) StatusCode {
	if vmErr, ok := AsVMError(err); ok {
		return vmErr.Code
	}
	return StatusUnknown
}
