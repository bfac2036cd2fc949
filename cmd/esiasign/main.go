package main

import (
	"fmt"
	"os"

	esiasign "github.com/mdean75/esia-sign"
	"github.com/mdean75/esia-sign/cmd/esiasign/cli"
)

// Exit codes by error class. Anything unclassified exits 1.
var exitCodes = map[esiasign.ErrorCode]int{
	esiasign.CodeConfiguration:        2,
	esiasign.CodeKeyStoreAccess:       3,
	esiasign.CodeKeyEntryNotFound:     4,
	esiasign.CodeKeyAccess:            5,
	esiasign.CodeAlgorithmUnavailable: 6,
	esiasign.CodeSigning:              7,
	esiasign.CodeEnvelopeEncoding:     8,
}

func main() {
	err := cli.Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "esiasign: %v\n", err)
	code := 1
	if c, ok := esiasign.CodeOf(err); ok {
		if mapped, ok := exitCodes[c]; ok {
			code = mapped
		}
	}
	os.Exit(code)
}
