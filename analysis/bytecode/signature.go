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
	"fmt"
	"strings"
)

// TokenKind discriminates the variants of a SignatureToken.
type TokenKind uint8

const (
	KindBool TokenKind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindStruct
	KindReference
	KindMutableReference
)

// SignatureToken is a type in a function or local signature. Inner is set for
// vector and reference kinds, Struct for the struct kind.
type SignatureToken struct {
	Kind   TokenKind       `cbor:"1,keyasint"`
	Inner  *SignatureToken `cbor:"2,keyasint,omitempty"`
	Struct StructDefIndex  `cbor:"3,keyasint,omitempty"`
}

// Signature is an ordered list of types. The module signature pool is the only
// owner of signatures, everything else refers to them by SignatureIndex.
type Signature []SignatureToken

// Convenience values for the non-parameterized kinds.
var (
	TokenBool    = SignatureToken{Kind: KindBool}
	TokenU8      = SignatureToken{Kind: KindU8}
	TokenU16     = SignatureToken{Kind: KindU16}
	TokenU32     = SignatureToken{Kind: KindU32}
	TokenU64     = SignatureToken{Kind: KindU64}
	TokenU128    = SignatureToken{Kind: KindU128}
	TokenU256    = SignatureToken{Kind: KindU256}
	TokenAddress = SignatureToken{Kind: KindAddress}
	TokenSigner  = SignatureToken{Kind: KindSigner}
)

// ReferenceTo builds the immutable reference type &t.
func ReferenceTo(t SignatureToken) SignatureToken {
	return SignatureToken{Kind: KindReference, Inner: &t}
}

// MutableReferenceTo builds the mutable reference type &mut t.
func MutableReferenceTo(t SignatureToken) SignatureToken {
	return SignatureToken{Kind: KindMutableReference, Inner: &t}
}

// VectorOf builds the vector type vector<t>.
func VectorOf(t SignatureToken) SignatureToken {
	return SignatureToken{Kind: KindVector, Inner: &t}
}

// StructType builds the type of the struct at the given definition index.
func StructType(idx StructDefIndex) SignatureToken {
	return SignatureToken{Kind: KindStruct, Struct: idx}
}

// IsReference reports whether the token is a reference of either mutability.
func (t SignatureToken) IsReference() bool {
	return t.Kind == KindReference || t.Kind == KindMutableReference
}

// IsMutableReference reports whether the token is a mutable reference.
func (t SignatureToken) IsMutableReference() bool {
	return t.Kind == KindMutableReference
}

func (t SignatureToken) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindU256:
		return "u256"
	case KindAddress:
		return "address"
	case KindSigner:
		return "signer"
	case KindVector:
		return fmt.Sprintf("vector<%s>", t.Inner)
	case KindStruct:
		return fmt.Sprintf("struct#%d", t.Struct)
	case KindReference:
		return fmt.Sprintf("&%s", t.Inner)
	case KindMutableReference:
		return fmt.Sprintf("&mut %s", t.Inner)
	default:
		return fmt.Sprintf("token(%d)", t.Kind)
	}
}

func (s Signature) String() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// validate rejects tokens whose inner pointers or struct indices are broken.
func (t SignatureToken) validate(numStructs int) error {
	switch t.Kind {
	case KindVector, KindReference, KindMutableReference:
		if t.Inner == nil {
			return NewVMErrorf(StatusIndexOutOfBounds, "%s token without inner type", t.Kind.name())
		}
		if t.Kind != KindVector && t.Inner.IsReference() {
			return NewVMErrorf(StatusIndexOutOfBounds, "reference to reference type %s", t)
		}
		return t.Inner.validate(numStructs)
	case KindStruct:
		if int(t.Struct) >= numStructs {
			return NewVMErrorf(StatusIndexOutOfBounds, "struct index %d out of range", t.Struct)
		}
	}
	return nil
}

func (k TokenKind) name() string {
	switch k {
	case KindVector:
		return "vector"
	case KindReference:
		return "reference"
	case KindMutableReference:
		return "mutable reference"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}
