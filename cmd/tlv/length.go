package main

import (
	"fmt"
	"math/big"

	"github.com/zoobzio/tlv"
)

func runLength(args []string, env *environment) error {
	var minBytes int

	flagSet := newFlagSet("length", env)
	flagSet.IntVar(&minBytes, "min-bytes", 0, "minimum byte count for the long form")
	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("length takes exactly one SIZE argument")
	}

	size, ok := new(big.Int).SetString(flagSet.Arg(0), 0)
	if !ok {
		return fmt.Errorf("invalid size %q", flagSet.Arg(0))
	}

	field, err := tlv.EncodeBerLength(size, minBytes)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.stdout, "%X\n", field)
	return err
}
