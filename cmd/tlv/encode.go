package main

import (
	"bytes"
	"fmt"

	"github.com/zoobzio/tlv"
)

func runEncode(args []string, env *environment) error {
	var (
		input          string
		hexOutput      bool
		minLengthBytes int
		compactTLV     bool
	)

	flagSet := newFlagSet("encode", env)
	flagSet.StringVarP(&input, "input", "i", formatJSON, "input tree format: json, yaml or msgpack")
	flagSet.BoolVarP(&hexOutput, "hex", "x", false, "write hex instead of binary")
	flagSet.IntVar(&minLengthBytes, "min-length-bytes", 0, "minimum byte count for long-form BER lengths")
	flagSet.BoolVar(&compactTLV, "compact-tlv", false, "encode Compact-TLV instead of BER-TLV")
	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if minLengthBytes < 0 || minLengthBytes > tlv.MaxLengthFieldBytes {
		return fmt.Errorf("--min-length-bytes must be between 0 and %d", tlv.MaxLengthFieldBytes)
	}

	data, remaining, err := readInput(flagSet.Args(), env.stdin)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return fmt.Errorf("encode takes at most one file argument, got %q", remaining[0])
	}

	nodes, err := readNodes(data, input)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if compactTLV {
		err = encodeCompactTree(&buf, nodes)
	} else {
		err = encodeBerTree(&buf, nodes, minLengthBytes)
	}
	if err != nil {
		return err
	}

	env.logger.Info("encoded",
		"items", len(nodes),
		"bytes", buf.Len(),
		"compact", compactTLV,
	)

	if hexOutput {
		_, err = fmt.Fprintln(env.stdout, hexValue(buf.Bytes()))
		return err
	}
	_, err = env.stdout.Write(buf.Bytes())
	return err
}
