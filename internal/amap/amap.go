package amap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/scan"
)

// Key types that carry meaning in an address map. Everything else is ignored.
const (
	KeyAddressBlock = "address_block"
	KeyOffset       = "offset"
)

// Entry is one bus connection in the address map.
// SourceFile and Prefix stay empty until the merge step fills them in.
type Entry struct {
	Name       string
	Address    uint64
	SourceFile string
	Prefix     string
}

// MalformedError is returned for a line that isn't a key = "value" pair.
type MalformedError struct {
	Line int
	Text string
}

func (e *MalformedError) Error() string {
	return "address map file is malformed"
}

// Map holds entries keyed by address and iterates them in ascending order.
type Map struct {
	entries []Entry
	index   map[uint64]int
}

// NewMap creates an empty address map
func NewMap() *Map {
	return &Map{index: make(map[uint64]int)}
}

// Set stores an entry. An existing entry at the same address is replaced.
func (m *Map) Set(e Entry) {
	if i, ok := m.index[e.Address]; ok {
		m.entries[i] = e
		return
	}

	// Keep entries sorted by address so iteration never depends on input order
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].Address > e.Address
	})
	m.entries = append(m.entries, Entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = e
	m.reindex(i)
}

func (m *Map) reindex(from int) {
	for i := from; i < len(m.entries); i++ {
		m.index[m.entries[i].Address] = i
	}
}

// Lookup returns the entry at addr
func (m *Map) Lookup(addr uint64) (Entry, bool) {
	i, ok := m.index[addr]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Update applies fn to the entry at addr. The address itself must not change.
func (m *Map) Update(addr uint64, fn func(*Entry)) bool {
	i, ok := m.index[addr]
	if !ok {
		return false
	}
	fn(&m.entries[i])
	m.entries[i].Address = addr
	return true
}

// Len returns the number of entries
func (m *Map) Len() int {
	return len(m.entries)
}

// Entries returns a copy of all entries in ascending address order.
func (m *Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ParseFile reads an address map from disk
func ParseFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads a stream of `some.dotted.path.key = "value"` lines.
//
// An address_block line names the connection that the next offset line
// commits. The name survives the commit, so several offsets in a row share
// it. An offset seen before any address_block is committed with an empty
// name.
func Parse(r io.Reader) (*Map, error) {
	m := NewMap()
	br := bufio.NewReader(r)

	var pending Entry
	lineNum := 0
	for {
		raw, readErr := br.ReadString('\n')
		if raw != "" {
			lineNum++
			if err := parseLine(m, &pending, raw, lineNum); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading address map: %w", readErr)
		}
	}

	return m, nil
}

func parseLine(m *Map, pending *Entry, raw string, lineNum int) error {
	line := strings.Trim(raw, " \t\r\n")
	if line == "" {
		return nil
	}

	keyType, value, err := splitRecord(line)
	if err != nil {
		return &MalformedError{Line: lineNum, Text: line}
	}

	switch keyType {
	case KeyAddressBlock:
		pending.Name = parentPath(value)
	case KeyOffset:
		addr, err := scan.AutoBase(value)
		if err != nil {
			return &MalformedError{Line: lineNum, Text: line}
		}
		pending.Address = addr
		m.Set(*pending)
	}
	return nil
}

var errNoRecord = errors.New("not a key/value record")

// splitRecord pulls the key type and the quoted value out of a line.
func splitRecord(line string) (keyType, value string, err error) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", errNoRecord
	}

	key := strings.TrimRight(line[:eq], " \t")
	dot := strings.LastIndexByte(key, '.')
	if dot <= 0 {
		return "", "", errNoRecord
	}
	keyType = key[dot+1:]

	rest := line[eq+1:]
	open := strings.IndexByte(rest, '"')
	if open < 0 {
		return "", "", errNoRecord
	}
	rest = rest[open+1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", "", errNoRecord
	}

	return keyType, rest[:end], nil
}

// parentPath drops the final /segment. A value without an interior slash
// has no parent and yields "".
func parentPath(v string) string {
	i := strings.LastIndexByte(v, '/')
	if i <= 0 {
		return ""
	}
	return v[:i]
}

// WriteNames lists every connection and its address
func WriteNames(w io.Writer, m *Map) error {
	for _, e := range m.Entries() {
		if _, err := fmt.Fprintf(w, "0x%016x  %s\n", e.Address, e.Name); err != nil {
			return err
		}
	}
	return nil
}
