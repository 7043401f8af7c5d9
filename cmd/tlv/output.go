package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/jsonc"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Tree formats accepted by --output and --input. Text is output only.
const (
	formatJSON    = "json"
	formatYAML    = "yaml"
	formatMsgpack = "msgpack"
	formatText    = "text"
)

// writeNodes writes nodes to w in format.
func writeNodes(w io.Writer, nodes []*Node, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(nodes); err != nil {
			return err
		}
		return enc.Close()
	case formatMsgpack:
		return msgpack.NewEncoder(w).Encode(nodes)
	case formatText:
		return renderTree(w, nodes, 0)
	}
	return fmt.Errorf("unknown output format %q (want json, yaml, msgpack or text)", format)
}

// readNodes parses a node tree in format. JSON input may carry comments
// and trailing commas, so hand-edited trees can be annotated.
func readNodes(data []byte, format string) ([]*Node, error) {
	var nodes []*Node
	var err error
	switch format {
	case formatJSON:
		err = json.Unmarshal(jsonc.ToJSON(data), &nodes)
	case formatYAML:
		err = yaml.Unmarshal(data, &nodes)
	case formatMsgpack:
		err = msgpack.Unmarshal(data, &nodes)
	default:
		return nil, fmt.Errorf("unknown input format %q (want json, yaml or msgpack)", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s tree: %w", format, err)
	}
	return nodes, nil
}
