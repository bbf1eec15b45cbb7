// Package executable models deployed contract programs and their
// compiled byte form. A contract's 32-byte ID is the BLAKE3 hash of
// its compiled executable.
package executable

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"lukechampine.com/blake3"

	"cube/calldata"
	"cube/entity"
)

const (
	MinProgramNameLength = 1
	MaxProgramNameLength = 255
	MinMethodCount       = 1
	MaxMethodCount       = 255
	MaxScriptLength      = 65535
)

var (
	ErrProgramNameLength   = errors.New("executable: program name length out of range")
	ErrMethodCount         = errors.New("executable: method count out of range")
	ErrDuplicateMethodName = errors.New("executable: duplicate method name")
	ErrNoCallableMethod    = errors.New("executable: no callable or read-only method")
	ErrScriptTooLong       = errors.New("executable: script exceeds maximum length")
	ErrTruncatedBytecode   = errors.New("executable: truncated bytecode")
)

// MethodType classifies how a method may be invoked.
type MethodType uint8

const (
	// Callable methods are invokable by call entries.
	Callable MethodType = iota
	// ReadOnly methods are invokable off-chain without a call entry.
	ReadOnly
	// Internal methods are reachable only from other methods.
	Internal
)

func (t MethodType) String() string {
	switch t {
	case Callable:
		return "callable"
	case ReadOnly:
		return "read_only"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Method is a single program method: its invocation class, its calldata
// signature and its script.
type Method struct {
	Name      string
	Type      MethodType
	Signature []calldata.ElementType
	Script    []byte
}

// Executable is a decompiled contract program.
type Executable struct {
	Name       string
	DeployedBy entity.Key
	Methods    []Method
}

// New validates and orders the methods, callable first, and returns the
// executable.
func New(name string, deployedBy entity.Key, methods []Method) (*Executable, error) {
	if len(name) < MinProgramNameLength || len(name) > MaxProgramNameLength {
		return nil, ErrProgramNameLength
	}
	if len(methods) < MinMethodCount || len(methods) > MaxMethodCount {
		return nil, ErrMethodCount
	}
	seen := make(map[string]struct{}, len(methods))
	invokable := false
	for _, m := range methods {
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMethodName, m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.Type == Callable || m.Type == ReadOnly {
			invokable = true
		}
		if len(m.Script) > MaxScriptLength {
			return nil, fmt.Errorf("%w: method %s", ErrScriptTooLong, m.Name)
		}
	}
	if !invokable {
		return nil, ErrNoCallableMethod
	}
	return &Executable{
		Name:       name,
		DeployedBy: deployedBy,
		Methods:    orderMethods(methods),
	}, nil
}

// Callable methods come first so that call-entry method indices stay
// compact against the callable prefix.
func orderMethods(methods []Method) []Method {
	ordered := make([]Method, 0, len(methods))
	for _, m := range methods {
		if m.Type == Callable {
			ordered = append(ordered, m)
		}
	}
	for _, m := range methods {
		if m.Type != Callable {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

// MethodByIndex returns the method at the given wire index.
func (e *Executable) MethodByIndex(index uint8) (Method, bool) {
	if int(index) >= len(e.Methods) {
		return Method{}, false
	}
	return e.Methods[index], true
}

// IndexByName returns the wire index of the named method.
func (e *Executable) IndexByName(name string) (uint8, bool) {
	for i, m := range e.Methods {
		if m.Name == name {
			return uint8(i), true
		}
	}
	return 0, false
}

// ContractID is the BLAKE3-256 hash of the compiled executable.
func (e *Executable) ContractID() (entity.Key, error) {
	compiled, err := e.Compile()
	if err != nil {
		return entity.Key{}, err
	}
	return blake3.Sum256(compiled), nil
}

type methodJSON struct {
	Name      string   `json:"method_name"`
	Type      string   `json:"method_type"`
	Signature []string `json:"signature"`
	Script    string   `json:"script"`
}

type executableJSON struct {
	ContractID string       `json:"contract_id"`
	DeployedBy string       `json:"deployed_by"`
	Name       string       `json:"executable_name"`
	Methods    []methodJSON `json:"methods"`
}

func (m Method) json() methodJSON {
	sig := make([]string, 0, len(m.Signature))
	for _, t := range m.Signature {
		sig = append(sig, t.String())
	}
	return methodJSON{
		Name:      m.Name,
		Type:      m.Type.String(),
		Signature: sig,
		Script:    hex.EncodeToString(m.Script),
	}
}

// MarshalJSON renders the method for inspection tooling.
func (m Method) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.json())
}

// MarshalJSON renders the executable for inspection tooling. The contract
// ID field is derived from the compiled form.
func (e *Executable) MarshalJSON() ([]byte, error) {
	id, err := e.ContractID()
	if err != nil {
		return nil, err
	}
	out := executableJSON{
		ContractID: hex.EncodeToString(id[:]),
		DeployedBy: hex.EncodeToString(e.DeployedBy[:]),
		Name:       e.Name,
		Methods:    make([]methodJSON, 0, len(e.Methods)),
	}
	for _, m := range e.Methods {
		out.Methods = append(out.Methods, m.json())
	}
	return json.Marshal(out)
}
