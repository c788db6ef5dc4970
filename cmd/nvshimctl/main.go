// nvshimctl is a developer tool for inspecting the shim's static
// tables: the NVAPI interface name table and the shader-extension
// opcode allow-list.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/capturefx/nvshim"
	"github.com/capturefx/nvshim/iface"
	"github.com/capturefx/nvshim/logging"
	"github.com/capturefx/nvshim/shaderext"
)

// Identifier accepts an NVAPI function identifier in hex (with or
// without the 0x prefix) or decimal.
type Identifier nvshim.FunctionID

func (i *Identifier) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	base := 10
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		s, base = rest, 16
	} else if strings.ContainsAny(s, "abcdefABCDEF") {
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return fmt.Errorf("invalid identifier %q: %w", text, err)
	}
	*i = Identifier(v)
	return nil
}

// CLI is the root command structure for nvshimctl.
type CLI struct {
	Log  string `name:"log" help:"Log spec (e.g., 'info,dispatch=debug')." env:"NVSHIM_LOG"`
	JSON bool   `name:"json" help:"Emit JSON instead of text."`

	Table   TableCmd   `cmd:"" help:"Print the known NVAPI interface identifiers."`
	Lookup  LookupCmd  `cmd:"" help:"Resolve an identifier to its interface name."`
	Opcodes OpcodesCmd `cmd:"" help:"Print the shader-extension opcode allow-list."`
}

// Logger builds the CLI logger, defaulting to warn for quiet output.
func (c *CLI) Logger() (*slog.Logger, error) {
	spec := c.Log
	if spec == "" {
		spec = "warn"
	}
	return logging.New(logging.Options{Spec: spec, Output: os.Stderr})
}

// TableCmd prints every identifier the shim knows a name for.
type TableCmd struct{}

func (c *TableCmd) Run(cli *CLI) error {
	table, err := iface.Parse()
	if err != nil {
		return err
	}

	entries := table.Entries()
	if cli.JSON {
		type row struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		rows := make([]row, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, row{ID: e.ID.String(), Name: e.Name})
		}
		return json.NewEncoder(os.Stdout).Encode(rows)
	}

	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.ID, e.Name)
	}
	return nil
}

// LookupCmd resolves one identifier.
type LookupCmd struct {
	ID Identifier `arg:"" help:"Function identifier (hex or decimal)."`
}

func (c *LookupCmd) Run(cli *CLI) error {
	table, err := iface.Parse()
	if err != nil {
		return err
	}

	id := nvshim.FunctionID(c.ID)
	name, err := table.Lookup(id)
	if err != nil {
		return err
	}

	if cli.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]string{
			"id":   id.String(),
			"name": name,
		})
	}
	fmt.Printf("%s  %s\n", id, name)
	return nil
}

// OpcodesCmd prints the opcode allow-list.
type OpcodesCmd struct{}

func (c *OpcodesCmd) Run(cli *CLI) error {
	allowed := shaderext.Allowed()
	if cli.JSON {
		type row struct {
			Opcode uint32 `json:"opcode"`
			Name   string `json:"name"`
		}
		rows := make([]row, 0, len(allowed))
		for _, a := range allowed {
			rows = append(rows, row{Opcode: uint32(a.Op), Name: a.Name})
		}
		return json.NewEncoder(os.Stdout).Encode(rows)
	}

	for _, a := range allowed {
		fmt.Printf("%2d  %s\n", uint32(a.Op), a.Name)
	}
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("nvshimctl"),
		kong.Description("Inspect the NVAPI shim's interface and opcode tables."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	logger, err := cli.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx.FatalIfErrorf(ctx.Run(&cli))
}
