package vreg

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/scan"
)

// Pragma keywords recognised at the start of a line
const (
	PragmaRegister = "@register"
	PragmaRDesc    = "@rdesc"
	PragmaField    = "@field"
	PragmaFDesc    = "@fdesc"

	keywordLocalparam = "localparam"
	registerPrefix    = "REG_"
)

// Kind identifies what a Descriptor describes
type Kind int

const (
	KindRegister Kind = iota
	KindRegisterDesc
	KindField
	KindFieldDesc
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindRegisterDesc:
		return "rdesc"
	case KindField:
		return "field"
	case KindFieldDesc:
		return "fdesc"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Descriptor is one pragma line as written in the source. Numeric columns
// stay as text until the register is flushed.
type Descriptor struct {
	Kind     Kind
	Name     string
	Width    string
	Position string
	Type     string
	Reset    string
	Desc     string
}

// State of the accumulator between lines
type State int

const (
	StateIdle State = iota
	StateAccumulating
)

func (s State) String() string {
	if s == StateAccumulating {
		return "accumulating"
	}
	return "idle"
}

// Field is a decoded @field descriptor
type Field struct {
	Name     string
	Width    uint32
	Position uint32
	Type     string
	Reset    string
	Desc     string
}

// Spec packs the field geometry into the upper word of a field constant
func (f Field) Spec() uint32 {
	return f.Width<<24 | f.Position<<16
}

// Constant is the 64-bit value emitted for the field: geometry in the upper
// 32 bits, register address in the lower 32 bits.
func (f Field) Constant(addr uint64) uint64 {
	return uint64(f.Spec())<<32 | uint64(uint32(addr))
}

// Register is a flushed descriptor sequence with its resolved name and address.
type Register struct {
	Name        string
	Address     uint64
	Descriptors []Descriptor
	Fields      []Field
}

// Accumulator collects pragmas for one register at a time and flushes them
// when the matching REG_ localparam shows up. Use one per source file.
type Accumulator struct {
	base    uint64
	prefix  string
	state   State
	pending []Descriptor
}

// NewAccumulator creates an accumulator for a file mapped at base. A
// non-empty prefix is prepended to every register name.
func NewAccumulator(base uint64, prefix string) *Accumulator {
	return &Accumulator{base: base, prefix: prefix}
}

// State reports whether descriptors are pending
func (a *Accumulator) State() State {
	return a.state
}

// Pending returns a copy of the descriptors waiting for a flush
func (a *Accumulator) Pending() []Descriptor {
	out := make([]Descriptor, len(a.pending))
	copy(out, a.pending)
	return out
}

func (a *Accumulator) push(d Descriptor) {
	a.pending = append(a.pending, d)
	a.state = StateAccumulating
}

func (a *Accumulator) reset() {
	a.pending = nil
	a.state = StateIdle
}

// Feed consumes one line with its line terminator already removed. It
// returns a Register when the line flushed the pending descriptors, and nil
// otherwise.
func (a *Accumulator) Feed(line string) (*Register, error) {
	in := scan.SkipWhitespace(line)
	if in == "" || strings.HasPrefix(in, "//") || strings.HasPrefix(in, "/*") || strings.HasPrefix(in, "*/") {
		return nil, nil
	}

	key, in := scan.NextToken(in)

	switch key {
	case PragmaRegister:
		a.reset()
		a.push(Descriptor{Kind: KindRegister, Desc: scan.Remaining(in)})

	case PragmaRDesc:
		a.push(Descriptor{Kind: KindRegisterDesc, Desc: scan.Remaining(in)})

	case PragmaFDesc:
		a.push(Descriptor{Kind: KindFieldDesc, Desc: scan.Remaining(in)})

	case PragmaField:
		d := Descriptor{Kind: KindField}
		d.Name, in = scan.NextToken(in)
		d.Width, in = scan.NextToken(in)
		d.Position, in = scan.NextToken(in)
		d.Type, in = scan.NextToken(in)
		d.Reset, in = scan.NextToken(in)
		d.Desc = scan.Remaining(in)
		a.push(d)

	case keywordLocalparam:
		if a.state == StateAccumulating {
			return a.flush(in)
		}
	}

	return nil, nil
}

// flush turns the pending sequence into a Register. Nothing is cleared
// unless every descriptor decodes.
func (a *Accumulator) flush(decl string) (*Register, error) {
	ident := localparamName(decl)
	if !strings.HasPrefix(ident, registerPrefix) {
		return nil, nil
	}

	name := strings.TrimPrefix(ident, registerPrefix)
	if a.prefix != "" {
		name = a.prefix + "_" + name
	}

	value := localparamValue(decl)

	reg := &Register{
		Name:        name,
		Address:     a.base + uint64(value)*4,
		Descriptors: a.Pending(),
	}

	for _, d := range a.pending {
		if d.Kind != KindField {
			continue
		}
		width, err := scan.DecodeInt(d.Width)
		if err != nil {
			return nil, fmt.Errorf("field %s width: %w", d.Name, err)
		}
		pos, err := scan.DecodeInt(d.Position)
		if err != nil {
			return nil, fmt.Errorf("field %s position: %w", d.Name, err)
		}
		reg.Fields = append(reg.Fields, Field{
			Name:     d.Name,
			Width:    width,
			Position: pos,
			Type:     d.Type,
			Reset:    d.Reset,
			Desc:     d.Desc,
		})
	}

	a.reset()
	return reg, nil
}

// localparamName is the identifier up to the first blank or '='
func localparamName(decl string) string {
	decl = scan.SkipWhitespace(decl)
	end := strings.IndexAny(decl, " \t=\x00")
	if end < 0 {
		return decl
	}
	return decl[:end]
}

// localparamValue decodes the text after '='. A declaration with no '='
// or a value with no leading digits, such as REG_A + 1, has the value 0.
func localparamValue(decl string) uint32 {
	eq := strings.IndexByte(decl, '=')
	if eq < 0 {
		return 0
	}
	v, err := scan.DecodeInt(scan.SkipWhitespace(decl[eq+1:]))
	if err != nil {
		return 0
	}
	return v
}

// Scan reads one annotated Verilog file and calls emit for every register
// flushed, in declaration order.
func Scan(r io.Reader, base uint64, prefix string, emit func(*Register) error) error {
	acc := NewAccumulator(base, prefix)
	br := bufio.NewReader(r)

	lineNum := 0
	for {
		raw, readErr := br.ReadString('\n')
		if raw != "" {
			lineNum++
			reg, err := acc.Feed(chomp(raw))
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
			if reg != nil {
				if err := emit(reg); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading source: %w", readErr)
		}
	}
}

// chomp cuts the line at the first CR or LF
func chomp(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
