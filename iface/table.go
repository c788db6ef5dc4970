// Package iface maps NvAPI function identifiers to their exported
// names. The table is built once from embedded interface metadata and
// is immutable afterwards, so concurrent reads need no locking. Lookup
// must stay O(1): some applications resolve identifiers at very high
// frequency and the dispatch path consults this table on every denial.
package iface

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/capturefx/nvshim"
)

// Interface identifier metadata, generated from the vendor's public
// interface table.
//
//go:embed nvapi_interfaces.txt
var interfaceData []byte

// Table resolves function identifiers to interface names.
type Table struct {
	names map[nvshim.FunctionID]string
}

// Parse builds the identifier table from the embedded metadata. The
// data ships inside the binary, so a malformed line is a build defect
// and reported as an error rather than skipped.
func Parse() (*Table, error) {
	return parse(interfaceData)
}

func parse(data []byte) (*Table, error) {
	t := &Table{names: make(map[nvshim.FunctionID]string)}

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("interface table line %d: want \"<id> <name>\", got %q", lineno, line)
		}

		id, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("interface table line %d: bad identifier %q: %w", lineno, fields[0], err)
		}

		t.names[nvshim.FunctionID(id)] = fields[1]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read interface table: %w", err)
	}

	return t, nil
}

// Name returns the interface name for id.
func (t *Table) Name(id nvshim.FunctionID) (string, bool) {
	name, ok := t.names[id]
	return name, ok
}

// Lookup returns the interface name for id, or ErrUnknownIdentifier.
func (t *Table) Lookup(id nvshim.FunctionID) (string, error) {
	name, ok := t.names[id]
	if !ok {
		return "", nvshim.ErrUnknownIdentifier{ID: id}
	}
	return name, nil
}

// DisplayName returns the interface name for id, falling back to the
// hex form for identifiers the table does not know.
func (t *Table) DisplayName(id nvshim.FunctionID) string {
	if name, ok := t.names[id]; ok {
		return name
	}
	return id.String()
}

// Len reports how many identifiers the table knows.
func (t *Table) Len() int {
	return len(t.names)
}

// Entry is one identifier/name pair, used for listings.
type Entry struct {
	ID   nvshim.FunctionID
	Name string
}

// Entries returns all known pairs sorted by identifier.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.names))
	for id, name := range t.names {
		entries = append(entries, Entry{ID: id, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}
