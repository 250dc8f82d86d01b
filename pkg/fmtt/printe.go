// Package fmtt prints values and error chains for humans, e.g. for
// --dump-config and fatal startup errors.
package fmtt

import (
	"errors"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump writes a deep, deterministic representation of v.
func Dump(w io.Writer, v any) {
	dumper.Fdump(w, v)
}

// PrintErrChain walks an error chain and prints each layer with its type.
func PrintErrChain(w io.Writer, err error) {
	if err == nil {
		fmt.Fprintln(w, "<nil>")
		return
	}

	i := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(w, "[%d] %T: %v\n", i, e, e)
		i++
	}
}
