package main

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/calldata"
	"cube/entity"
	"cube/executable"
)

func compiledExecutableHex(t *testing.T) string {
	t.Helper()
	var deployer entity.Key
	deployer[0] = 0xab
	exe, err := executable.New("counter", deployer, []executable.Method{
		{
			Name:      "bump",
			Type:      executable.Callable,
			Signature: []calldata.ElementType{{Kind: calldata.KindU32}},
			Script:    []byte{0x51},
		},
	})
	require.NoError(t, err)
	compiled, err := exe.Compile()
	require.NoError(t, err)
	return hex.EncodeToString(compiled)
}

func TestRunDecompExecutable(t *testing.T) {
	require.Equal(t, 0, runDecomp([]string{"executable", compiledExecutableHex(t)}))
}

func TestRunDecompScript(t *testing.T) {
	// OP_DUP OP_HASH160
	require.Equal(t, 0, runDecomp([]string{"script", "76a9"}))
}

func TestRunDecompRejectsBadInput(t *testing.T) {
	require.Equal(t, 2, runDecomp(nil))
	require.Equal(t, 2, runDecomp([]string{"opcode", "00"}))
	require.Equal(t, 1, runDecomp([]string{"executable", "zz"}))
	require.Equal(t, 1, runDecomp([]string{"executable", "00"}))
}
