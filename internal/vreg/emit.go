package vreg

import (
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Revision of the generator, printed in every banner
const Revision = "1.0"

// continuation lines up with the DESCRIPTION column of the field table
const continuation = "//                                                               "

const fieldHeading = "//     NAME                           WID   POS TYPE RESET       DESCRIPTION\n"

// BitRange renders a field's bits as "hi:lo", or a single bit number for
// one-bit fields.
func BitRange(pos, width uint32) string {
	if width < 2 {
		return fmt.Sprintf("%d", pos)
	}
	return fmt.Sprintf("%02d:%02d", pos+width-1, pos)
}

// errWriter remembers the first write error so the renderers below can
// stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// WriteDocumentation writes the comment block that describes reg
func WriteDocumentation(w io.Writer, reg *Register) error {
	ew := &errWriter{w: w}

	ew.printf("//\n")
	ew.printf("// Register:    %s\n", reg.Name)

	fields := 0
	for _, d := range reg.Descriptors {
		switch d.Kind {
		case KindRegister:
			ew.printf("// Description: %s\n", d.Desc)

		case KindRegisterDesc, KindFieldDesc:
			ew.printf("%s%s\n", continuation, d.Desc)

		case KindField:
			if fields >= len(reg.Fields) {
				continue
			}
			f := reg.Fields[fields]
			if fields == 0 {
				ew.printf("// Fields:\n")
				ew.printf(fieldHeading)
			}
			fields++
			ew.printf("//     %-30s %-3d %5s %-4s %-11s %s\n",
				f.Name, f.Width, BitRange(f.Position, f.Width), f.Type, f.Reset, f.Desc)
		}
	}

	ew.printf("//\n")
	return ew.err
}

// WriteConstants writes the #define for the register address followed by
// one #define per field.
func WriteConstants(w io.Writer, reg *Register) error {
	ew := &errWriter{w: w}

	ew.printf("#define %-60s 0x%016xULL\n", reg.Name, reg.Address)
	for _, f := range reg.Fields {
		ew.printf("#define %-60s 0x%08x%08xULL\n", reg.Name+"_"+f.Name, f.Spec(), uint32(reg.Address))
	}
	ew.printf("\n\n")

	return ew.err
}

// WriteRegister writes the documentation and constants for one register
func WriteRegister(w io.Writer, reg *Register) error {
	if err := WriteDocumentation(w, reg); err != nil {
		return err
	}
	return WriteConstants(w, reg)
}

// Banner describes where a generated header came from
type Banner struct {
	Tool       string
	AddressMap string
	Config     string
	Text       string
}

// WritePreamble opens the header: generation banner and include guard
func WritePreamble(w io.Writer, b Banner, guard string) error {
	ew := &errWriter{w: w}

	tool := b.Tool
	if tool == "" {
		tool = "xlate_vreg"
	}

	ew.printf("//=============================================================================\n")
	ew.printf("// This file was generated by %s %s. Do not edit.\n", tool, Revision)
	if b.AddressMap != "" {
		ew.printf("// Address map:   %s\n", b.AddressMap)
	}
	if b.Config != "" {
		ew.printf("// Configuration: %s\n", b.Config)
	}
	for _, line := range strings.Split(strings.TrimRight(b.Text, "\n"), "\n") {
		if line != "" {
			ew.printf("// %s\n", line)
		}
	}
	ew.printf("//=============================================================================\n")
	ew.printf("#ifndef %s\n", guard)
	ew.printf("#define %s\n\n\n", guard)

	return ew.err
}

// WritePostamble closes the include guard
func WritePostamble(w io.Writer, guard string) error {
	_, err := fmt.Fprintf(w, "#endif // %s\n", guard)
	return err
}

// DefaultGuard is used when there is no output file name to derive one from
const DefaultGuard = "XLATE_VREG_H"

// GuardFor derives an include guard from an output file name: "regs.h"
// becomes "REGS_H".
func GuardFor(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if base == "" || base == "-" {
		return DefaultGuard
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteByte('_')
		}
	}

	guard := b.String()
	if guard[0] >= '0' && guard[0] <= '9' {
		guard = "_" + guard
	}
	return guard
}
