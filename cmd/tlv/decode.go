package main

import (
	"fmt"
	"time"
)

func runDecode(args []string, env *environment) error {
	var (
		hexInput   bool
		compactTLV bool
		flat       bool
		output     string
		decompress string
	)

	flagSet := newFlagSet("decode", env)
	flagSet.BoolVarP(&hexInput, "hex", "x", false, "treat input as hex-encoded TLV")
	flagSet.BoolVar(&compactTLV, "compact-tlv", false, "decode Compact-TLV instead of BER-TLV")
	flagSet.BoolVar(&flat, "flat", false, "do not decode the contents of constructed items")
	flagSet.StringVarP(&output, "output", "o", formatJSON, "output format: json, yaml, msgpack or text")
	flagSet.StringVar(&decompress, "decompress", "", "decompress input first: zstd or lz4")
	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}

	data, remaining, err := readInput(flagSet.Args(), env.stdin)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return fmt.Errorf("decode takes at most one file argument, got %q", remaining[0])
	}
	if data, err = decompressInput(data, decompress); err != nil {
		return err
	}
	if hexInput {
		if data, err = decodeHexInput(data); err != nil {
			return err
		}
	}

	start := time.Now()
	var nodes []*Node
	if compactTLV {
		nodes, err = decodeCompactTree(data)
	} else {
		nodes, err = decodeBerTree(data, flat)
	}
	if err != nil {
		return err
	}

	env.logger.Info("decoded",
		"bytes", len(data),
		"items", len(nodes),
		"compact", compactTLV,
		"duration", time.Since(start),
	)
	return writeNodes(env.stdout, nodes, output)
}
