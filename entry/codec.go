package entry

import (
	"fmt"

	"cube/ape"
	"cube/calldata"
	"cube/entity"
)

// Discriminator bits. The first selects the common branch, the second
// selects move over call within it.
const (
	commonBranchBit = true
	moveEntryBit    = false
)

// Encode writes the entry with its two discriminator bits.
func (e Entry) Encode(w *ape.Writer, opts DecodeOptions) error {
	if e.Call == nil {
		return ErrMoveNotImplemented
	}
	w.WriteBool(commonBranchBit)
	w.WriteBool(moveEntryBit)
	return e.Call.encode(w, opts)
}

// Decode reads one entry. Reserved branches surface explicit errors.
func Decode(r *ape.Reader, opts DecodeOptions) (Entry, error) {
	common, err := r.ReadBool()
	if err != nil {
		return Entry{}, err
	}
	if !common {
		return Entry{}, ErrUncommonBranchNotImplemented
	}
	move, err := r.ReadBool()
	if err != nil {
		return Entry{}, err
	}
	if move != moveEntryBit {
		return Entry{}, ErrMoveNotImplemented
	}
	call, err := decodeCall(r, opts)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Call: call}, nil
}

func (c *Call) encode(w *ape.Writer, opts DecodeOptions) error {
	c.Account.Encode(w, opts.AccountRankFormat)
	c.Contract.Encode(w, opts.ContractRankFormat)

	methodCount := c.Contract.MethodCount
	if c.MethodIndex >= methodCount {
		return fmt.Errorf("%w: index %d, methods %d", ErrMethodIndexOutOfRange, c.MethodIndex, methodCount)
	}
	if err := ape.EncodeAtomic(w, c.MethodIndex, methodCount); err != nil {
		return err
	}

	signature, err := opts.Methods.MethodSignature(c.Contract.ID, c.MethodIndex)
	if err != nil {
		return err
	}
	if len(signature) != len(c.Calldata) {
		return fmt.Errorf("%w: %d elements, signature wants %d",
			ErrSignatureMismatch, len(c.Calldata), len(signature))
	}
	for i, elem := range c.Calldata {
		if elem.Type != signature[i] {
			return fmt.Errorf("%w: element %d is %s, signature wants %s",
				ErrSignatureMismatch, i, elem.Type, signature[i])
		}
		if err := elem.Encode(w, opts.AccountRankFormat); err != nil {
			return err
		}
	}

	encodeOptionalShortVal(w, c.OpsBudget)
	encodeOptionalShortVal(w, c.OpsPriceOverhead)
	return nil
}

func decodeCall(r *ape.Reader, opts DecodeOptions) (*Call, error) {
	account, err := entity.DecodeAccount(r, opts.Registry, opts.AccountRankFormat)
	if err != nil {
		return nil, err
	}
	contract, err := entity.DecodeContract(r, opts.Registry, opts.ContractRankFormat)
	if err != nil {
		return nil, err
	}

	methodIndex, err := ape.DecodeAtomic(r, contract.MethodCount)
	if err != nil {
		return nil, err
	}

	// Element count and types come from the method signature, never
	// from the wire.
	signature, err := opts.Methods.MethodSignature(contract.ID, methodIndex)
	if err != nil {
		return nil, err
	}
	var elements []calldata.Element
	for _, typ := range signature {
		elem, err := calldata.DecodeElement(r, typ, opts.Registry, opts.AccountRankFormat)
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)
	}

	opsBudget, err := decodeOptionalShortVal(r)
	if err != nil {
		return nil, err
	}
	opsPriceOverhead, err := decodeOptionalShortVal(r)
	if err != nil {
		return nil, err
	}

	return &Call{
		Account:          account,
		Contract:         contract,
		MethodIndex:      methodIndex,
		Calldata:         elements,
		OpsBudget:        opsBudget,
		OpsPriceOverhead: opsPriceOverhead,
	}, nil
}

func encodeOptionalShortVal(w *ape.Writer, v *uint32) {
	if v == nil {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	ape.ShortVal(*v).Encode(w)
}

func decodeOptionalShortVal(r *ape.Reader) (*uint32, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := ape.DecodeShortVal(r)
	if err != nil {
		return nil, err
	}
	out := uint32(v)
	return &out, nil
}
