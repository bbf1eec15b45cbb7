package executable

import (
	"bytes"
	"encoding/binary"

	"cube/calldata"
	"cube/entity"
)

// Compile serializes the executable:
//
//	name length (u8), name bytes,
//	deployer key (32 bytes),
//	method count (u8), compiled methods.
//
// Each method is:
//
//	method type (u8),
//	name length (u8), name bytes,
//	element count (u8), element type bytecodes,
//	script length (u16 big-endian), script bytes.
func (e *Executable) Compile() ([]byte, error) {
	if len(e.Name) < MinProgramNameLength || len(e.Name) > MaxProgramNameLength {
		return nil, ErrProgramNameLength
	}
	if len(e.Methods) < MinMethodCount || len(e.Methods) > MaxMethodCount {
		return nil, ErrMethodCount
	}
	var buf bytes.Buffer
	buf.WriteByte(uint8(len(e.Name)))
	buf.WriteString(e.Name)
	buf.Write(e.DeployedBy[:])
	buf.WriteByte(uint8(len(e.Methods)))
	for _, m := range e.Methods {
		if err := compileMethod(&buf, m); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func compileMethod(buf *bytes.Buffer, m Method) error {
	if len(m.Name) < MinProgramNameLength || len(m.Name) > MaxProgramNameLength {
		return ErrProgramNameLength
	}
	if len(m.Script) > MaxScriptLength {
		return ErrScriptTooLong
	}
	buf.WriteByte(uint8(m.Type))
	buf.WriteByte(uint8(len(m.Name)))
	buf.WriteString(m.Name)
	buf.WriteByte(uint8(len(m.Signature)))
	for _, t := range m.Signature {
		buf.Write(t.Bytecode())
	}
	var scriptLen [2]byte
	binary.BigEndian.PutUint16(scriptLen[:], uint16(len(m.Script)))
	buf.Write(scriptLen[:])
	buf.Write(m.Script)
	return nil
}

type byteStream struct {
	data []byte
	pos  int
}

func (s *byteStream) next() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, ErrTruncatedBytecode
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *byteStream) take(n int) ([]byte, error) {
	if s.pos+n > len(s.data) {
		return nil, ErrTruncatedBytecode
	}
	out := s.data[s.pos : s.pos+n]
	s.pos += n
	return out, nil
}

// Decompile parses a compiled executable. Trailing bytes after the last
// method are rejected.
func Decompile(data []byte) (*Executable, error) {
	s := &byteStream{data: data}
	nameLen, err := s.next()
	if err != nil {
		return nil, err
	}
	nameBytes, err := s.take(int(nameLen))
	if err != nil {
		return nil, err
	}
	deployerBytes, err := s.take(32)
	if err != nil {
		return nil, err
	}
	var deployedBy entity.Key
	copy(deployedBy[:], deployerBytes)
	methodCount, err := s.next()
	if err != nil {
		return nil, err
	}
	methods := make([]Method, 0, methodCount)
	for i := 0; i < int(methodCount); i++ {
		m, err := decompileMethod(s)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if s.pos != len(s.data) {
		return nil, ErrTruncatedBytecode
	}
	return New(string(nameBytes), deployedBy, methods)
}

// DecompileMethod parses a single compiled method. Trailing bytes are
// rejected.
func DecompileMethod(data []byte) (Method, error) {
	s := &byteStream{data: data}
	m, err := decompileMethod(s)
	if err != nil {
		return Method{}, err
	}
	if s.pos != len(s.data) {
		return Method{}, ErrTruncatedBytecode
	}
	return m, nil
}

func decompileMethod(s *byteStream) (Method, error) {
	typeByte, err := s.next()
	if err != nil {
		return Method{}, err
	}
	nameLen, err := s.next()
	if err != nil {
		return Method{}, err
	}
	nameBytes, err := s.take(int(nameLen))
	if err != nil {
		return Method{}, err
	}
	elemCount, err := s.next()
	if err != nil {
		return Method{}, err
	}
	var signature []calldata.ElementType
	for i := 0; i < int(elemCount); i++ {
		typ, n, err := calldata.ElementTypeFromBytecode(s.data[s.pos:])
		if err != nil {
			return Method{}, err
		}
		s.pos += n
		signature = append(signature, typ)
	}
	scriptLenBytes, err := s.take(2)
	if err != nil {
		return Method{}, err
	}
	scriptLen := int(binary.BigEndian.Uint16(scriptLenBytes))
	scriptBytes, err := s.take(scriptLen)
	if err != nil {
		return Method{}, err
	}
	var script []byte
	if scriptLen > 0 {
		script = make([]byte, scriptLen)
		copy(script, scriptBytes)
	}
	return Method{
		Name:      string(nameBytes),
		Type:      MethodType(typeByte),
		Signature: signature,
		Script:    script,
	}, nil
}
