package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/txscript"

	"cube/executable"
)

const decompUsage = "usage: cubed decomp executable|method|script <hex>"

// runDecomp implements the offline inspection subcommand. It prints the
// decompiled form of a compiled executable, a single method, or a
// Bitcoin script.
func runDecomp(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, decompUsage)
		return 2
	}

	raw, err := hex.DecodeString(strings.TrimSpace(args[1]))
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid hex input")
		return 1
	}

	switch args[0] {
	case "executable":
		exe, err := executable.Decompile(raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return printJSON(exe)
	case "method":
		m, err := executable.DecompileMethod(raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return printJSON(m)
	case "script":
		disasm, err := txscript.DisasmString(raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(disasm)
		return 0
	default:
		fmt.Fprintln(os.Stderr, decompUsage)
		return 2
	}
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}
