// tlv inspects and produces BER-TLV and Compact-TLV data from the command
// line.
//
// Three subcommands are available:
//
//	tlv decode   binary or hex TLV to a JSON, YAML or MessagePack node tree
//	tlv encode   a node tree back to binary or hex TLV
//	tlv length   the BER length field for a size
//
// Input is read from a trailing file argument when it names a regular
// file, or from stdin otherwise.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// environment carries the process streams so subcommands can be run
// against buffers in tests.
type environment struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// command is one tlv subcommand.
type command struct {
	name    string
	usage   string
	summary string
	run     func(args []string, env *environment) error
}

func commands() []command {
	return []command{
		{
			name:    "decode",
			usage:   "tlv decode [--hex] [--compact-tlv] [--flat] [--decompress zstd|lz4] [--output json|yaml|msgpack|text] [file]",
			summary: "Decode TLV data into a node tree",
			run:     runDecode,
		},
		{
			name:    "encode",
			usage:   "tlv encode [--input json|yaml|msgpack] [--hex] [--min-length-bytes N] [--compact-tlv] [file]",
			summary: "Encode a node tree into TLV data",
			run:     runEncode,
		},
		{
			name:    "length",
			usage:   "tlv length [--min-bytes N] SIZE",
			summary: "Print the BER length field for SIZE",
			run:     runLength,
		},
	}
}

func main() {
	env := &environment{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	if err := run(os.Args[1:], env); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, env *environment) error {
	if len(args) == 0 {
		printUsage(env.stderr)
		return errors.New("no command given")
	}

	name := args[0]
	if name == "-h" || name == "--help" || name == "help" {
		printUsage(env.stdout)
		return nil
	}

	for _, cmd := range commands() {
		if cmd.name != name {
			continue
		}
		if env.logger == nil {
			env.logger = newCommandLogger(env.stderr)
		}
		env.logger = env.logger.With("command", cmd.name)
		return cmd.run(args[1:], env)
	}

	printUsage(env.stderr)
	return fmt.Errorf("unknown command %q", name)
}

// parseFlags parses args with flagSet, treating --help as success.
// help reports whether usage was printed and the command should stop.
func parseFlags(flagSet *pflag.FlagSet, args []string) (help bool, err error) {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func newFlagSet(name string, env *environment) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(env.stderr)
	for _, cmd := range commands() {
		if cmd.name == name {
			usage := cmd.usage
			flagSet.Usage = func() {
				fmt.Fprintf(env.stderr, "Usage:\n  %s\n\nFlags:\n", usage)
				flagSet.PrintDefaults()
			}
		}
	}
	return flagSet
}

func printUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("tlv inspects and produces BER-TLV and Compact-TLV data.\n\nUsage:\n")
	for _, cmd := range commands() {
		fmt.Fprintf(&b, "  %s\n      %s\n", cmd.usage, cmd.summary)
	}
	b.WriteString(`
Examples:
  # Decode a hex dump of an EMV record
  echo '6F 0A 84 08 A0 00 00 00 03 10 10 10' | tlv decode --hex

  # Print a readable tree of a zstd-compressed capture
  tlv decode --decompress zstd --output text capture.bin.zst

  # Decode to YAML, edit, and write the binary back
  tlv decode --output yaml record.bin > record.yaml
  tlv encode --input yaml record.yaml > record.bin

  # Long-form length for 300 bytes padded to 3 length bytes
  tlv length --min-bytes 3 300
`)
	fmt.Fprint(w, b.String())
}
