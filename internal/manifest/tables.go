package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/amap"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/vreg"
)

// Version of the manifest layout
const Version = 1

// Manifest is the register map of a generated header as flat relations.
// Each slice is a table with one row per item.
type Manifest struct {
	Version     int             `json:"version"`
	Connections []ConnectionRow `json:"connections"`
	Registers   []RegisterRow   `json:"registers"`
	Fields      []FieldRow      `json:"fields"`
}

type ConnectionRow struct {
	Name      string `json:"name"`
	Address   uint64 `json:"address"`
	File      string `json:"file"`
	Prefix    string `json:"prefix"`
	Omitted   bool   `json:"omitted"`
	Registers int    `json:"registers"`
}

type RegisterRow struct {
	Connection  string `json:"connection"`
	Name        string `json:"name"`
	Address     uint64 `json:"address"`
	Description string `json:"description"`
}

type FieldRow struct {
	Register    string `json:"register"`
	Name        string `json:"name"`
	Width       uint32 `json:"width"`
	Position    uint32 `json:"position"`
	Type        string `json:"type"`
	Reset       string `json:"reset"`
	Description string `json:"description"`
	Constant    string `json:"constant"`
}

// Empty returns a manifest with every table allocated
func Empty() Manifest {
	return Manifest{
		Version:     Version,
		Connections: []ConnectionRow{},
		Registers:   []RegisterRow{},
		Fields:      []FieldRow{},
	}
}

// Builder collects rows while a header is generated. Registers are
// attributed to the connection most recently begun.
type Builder struct {
	m       Manifest
	current int
}

func NewBuilder() *Builder {
	return &Builder{m: Empty(), current: -1}
}

// BeginConnection adds a row for an address-map entry
func (b *Builder) BeginConnection(e amap.Entry, omitted bool) {
	b.m.Connections = append(b.m.Connections, ConnectionRow{
		Name:    e.Name,
		Address: e.Address,
		File:    e.SourceFile,
		Prefix:  e.Prefix,
		Omitted: omitted,
	})
	b.current = len(b.m.Connections) - 1
}

// AddRegister records a flushed register and its fields
func (b *Builder) AddRegister(reg *vreg.Register) {
	conn := ""
	if b.current >= 0 {
		conn = b.m.Connections[b.current].Name
		b.m.Connections[b.current].Registers++
	}

	regDesc, fieldDescs := descriptions(reg)
	b.m.Registers = append(b.m.Registers, RegisterRow{
		Connection:  conn,
		Name:        reg.Name,
		Address:     reg.Address,
		Description: regDesc,
	})

	for i, f := range reg.Fields {
		desc := f.Desc
		if i < len(fieldDescs) {
			desc = fieldDescs[i]
		}
		b.m.Fields = append(b.m.Fields, FieldRow{
			Register:    reg.Name,
			Name:        f.Name,
			Width:       f.Width,
			Position:    f.Position,
			Type:        f.Type,
			Reset:       f.Reset,
			Description: desc,
			Constant:    fmt.Sprintf("0x%016x", f.Constant(reg.Address)),
		})
	}
}

// Manifest returns the collected rows in a stable order
func (b *Builder) Manifest() Manifest {
	out := Manifest{
		Version:     Version,
		Connections: append([]ConnectionRow{}, b.m.Connections...),
		Registers:   append([]RegisterRow{}, b.m.Registers...),
		Fields:      append([]FieldRow{}, b.m.Fields...),
	}
	Sort(&out)
	return out
}

// Sort orders every table: connections and registers by address, fields by
// register and bit position.
func Sort(m *Manifest) {
	sort.SliceStable(m.Connections, func(i, j int) bool {
		return m.Connections[i].Address < m.Connections[j].Address
	})
	sort.SliceStable(m.Registers, func(i, j int) bool {
		a, b := m.Registers[i], m.Registers[j]
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		return a.Name < b.Name
	})
	sort.SliceStable(m.Fields, func(i, j int) bool {
		a, b := m.Fields[i], m.Fields[j]
		if a.Register != b.Register {
			return a.Register < b.Register
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Name < b.Name
	})
}

// descriptions joins continuation lines onto the description they follow
func descriptions(reg *vreg.Register) (string, []string) {
	var regParts []string
	var fields [][]string
	for _, d := range reg.Descriptors {
		switch d.Kind {
		case vreg.KindRegister, vreg.KindRegisterDesc:
			regParts = appendText(regParts, d.Desc)
		case vreg.KindField:
			fields = append(fields, appendText(nil, d.Desc))
		case vreg.KindFieldDesc:
			if len(fields) == 0 {
				regParts = appendText(regParts, d.Desc)
				continue
			}
			last := len(fields) - 1
			fields[last] = appendText(fields[last], d.Desc)
		}
	}

	out := make([]string, len(fields))
	for i, parts := range fields {
		out[i] = strings.Join(parts, " ")
	}
	return strings.Join(regParts, " "), out
}

func appendText(parts []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return parts
	}
	return append(parts, s)
}
