// Package entry implements the wire codec for rollup entries. Only the
// Call entry is defined on the wire; the uncommon branch and the Move
// entry are reserved.
package entry

import (
	"errors"

	"cube/calldata"
	"cube/entity"
)

var (
	// ErrMoveNotImplemented is returned when the move discriminator bit
	// appears; the Move entry is reserved.
	ErrMoveNotImplemented = errors.New("entry: move entries are not implemented")
	// ErrUncommonBranchNotImplemented is returned when the uncommon
	// discriminator bit appears; that branch is reserved.
	ErrUncommonBranchNotImplemented = errors.New("entry: uncommon branch is not implemented")
	// ErrMethodIndexOutOfRange is returned when a call names a method the
	// contract does not have.
	ErrMethodIndexOutOfRange = errors.New("entry: method index out of range")
	// ErrSignatureMismatch is returned when calldata does not match the
	// method signature.
	ErrSignatureMismatch = errors.New("entry: calldata does not match method signature")
)

// MethodResolver supplies the calldata signature of a contract method.
// Call decoding cannot proceed without it: element count and types are
// never transmitted.
type MethodResolver interface {
	MethodSignature(contractID entity.Key, methodIndex uint8) ([]calldata.ElementType, error)
}

// DecodeOptions carries the out-of-band agreements between encoder and
// decoder: the registry for rank resolution, the method resolver, and
// the rank wire forms.
type DecodeOptions struct {
	Registry           entity.Registry
	Methods            MethodResolver
	AccountRankFormat  entity.RankFormat
	ContractRankFormat entity.RankFormat
}

// Call invokes a contract method with typed calldata.
type Call struct {
	Account          entity.Account
	Contract         entity.Contract
	MethodIndex      uint8
	Calldata         []calldata.Element
	OpsBudget        *uint32
	OpsPriceOverhead *uint32
}

// Entry is the one-of wire type. Exactly one field is non-nil.
type Entry struct {
	Call *Call
}

// NewCallEntry wraps a call in an entry.
func NewCallEntry(call *Call) Entry {
	return Entry{Call: call}
}
