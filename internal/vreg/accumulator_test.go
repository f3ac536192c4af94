package vreg

import (
	"errors"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/scan"
)

func feedAll(t *testing.T, acc *Accumulator, lines ...string) []*Register {
	t.Helper()
	var regs []*Register
	for _, line := range lines {
		reg, err := acc.Feed(line)
		if err != nil {
			t.Fatalf("Feed(%q): %v", line, err)
		}
		if reg != nil {
			regs = append(regs, reg)
		}
	}
	return regs
}

func TestAccumulatorFlushesOnRegLocalparam(t *testing.T) {
	acc := NewAccumulator(0x3000, "PFX")
	regs := feedAll(t, acc,
		"// @register is ignored inside a line comment",
		"    @register Status register",
		"    @rdesc    second line of description",
		"    @field    BUSY 1 0 RO 0 engine busy",
		"    @field    COUNT 4 8 RW 4'h0 transfer count",
		"    @fdesc    counts down to zero",
		"    localparam REG_STATUS = 3'h2;",
	)

	if len(regs) != 1 {
		t.Fatalf("expected 1 register, got %d", len(regs))
	}
	reg := regs[0]
	if reg.Name != "PFX_STATUS" {
		t.Fatalf("expected PFX_STATUS, got %q", reg.Name)
	}
	if reg.Address != 0x3008 {
		t.Fatalf("expected address 0x3008, got %#x", reg.Address)
	}
	if len(reg.Descriptors) != 5 {
		t.Fatalf("expected 5 descriptors, got %d", len(reg.Descriptors))
	}
	if len(reg.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(reg.Fields))
	}
	count := reg.Fields[1]
	if count.Name != "COUNT" || count.Width != 4 || count.Position != 8 || count.Reset != "4'h0" {
		t.Fatalf("unexpected field %+v", count)
	}
	if count.Desc != "transfer count" {
		t.Fatalf("unexpected field description %q", count.Desc)
	}
	if acc.State() != StateIdle || len(acc.Pending()) != 0 {
		t.Fatalf("expected accumulator to be idle and empty after flush")
	}
}

func TestAccumulatorWithoutPrefix(t *testing.T) {
	acc := NewAccumulator(0, "")
	regs := feedAll(t, acc, "@register control", "localparam REG_CTRL=0")
	if len(regs) != 1 || regs[0].Name != "CTRL" || regs[0].Address != 0 {
		t.Fatalf("unexpected registers %+v", regs)
	}
}

func TestAccumulatorIgnoresNonRegLocalparam(t *testing.T) {
	acc := NewAccumulator(0x100, "")
	regs := feedAll(t, acc,
		"@register control",
		"@field GO 1 0 WO 0 start",
		"localparam WIDTH = 32;",
		"wire [31:0] data;",
		"@fdesc more text",
	)
	if len(regs) != 0 {
		t.Fatalf("expected no flush, got %+v", regs)
	}
	if acc.State() != StateAccumulating || len(acc.Pending()) != 3 {
		t.Fatalf("expected 3 pending descriptors, got %d (%s)", len(acc.Pending()), acc.State())
	}

	regs = feedAll(t, acc, "localparam REG_CTRL = 1;")
	if len(regs) != 1 || regs[0].Address != 0x104 {
		t.Fatalf("expected CTRL at 0x104, got %+v", regs)
	}
}

func TestAccumulatorLocalparamWithoutPending(t *testing.T) {
	acc := NewAccumulator(0, "")
	regs := feedAll(t, acc, "localparam REG_ORPHAN = 1;")
	if len(regs) != 0 || acc.State() != StateIdle {
		t.Fatalf("expected orphan localparam to be ignored")
	}
}

func TestAccumulatorRegisterPragmaRestarts(t *testing.T) {
	acc := NewAccumulator(0, "")
	feedAll(t, acc,
		"@register first",
		"@field A 1 0 RW 0 a",
		"@register second",
	)
	pending := acc.Pending()
	if len(pending) != 1 || pending[0].Kind != KindRegister || pending[0].Desc != "second" {
		t.Fatalf("expected only the second register pragma, got %+v", pending)
	}
}

func TestAccumulatorFlushesOnce(t *testing.T) {
	acc := NewAccumulator(0, "")
	regs := feedAll(t, acc,
		"@register r",
		"localparam REG_A = 0;",
		"localparam REG_B = 1;",
	)
	if len(regs) != 1 || regs[0].Name != "A" {
		t.Fatalf("expected a single flush for REG_A, got %+v", regs)
	}
}

func TestAccumulatorSkipsCommentLines(t *testing.T) {
	acc := NewAccumulator(0, "")
	feedAll(t, acc,
		"/* @register hidden",
		"*/ @register hidden",
		"   // @register hidden",
		"",
		"\t  ",
	)
	if acc.State() != StateIdle {
		t.Fatalf("comment lines must not change state")
	}
}

func TestAccumulatorLocalparamWithoutValue(t *testing.T) {
	acc := NewAccumulator(0x40, "")
	regs := feedAll(t, acc, "@register r", "localparam REG_X;")
	if len(regs) != 1 {
		t.Fatalf("expected flush")
	}
	// "REG_X;" keeps the semicolon since only blanks and '=' end the name
	if regs[0].Name != "X;" || regs[0].Address != 0x40 {
		t.Fatalf("unexpected register %+v", regs[0])
	}
}

func TestAccumulatorBadFieldWidthIsFatal(t *testing.T) {
	acc := NewAccumulator(0, "")
	feedAll(t, acc, "@register r", "@field F WIDTH 0 RW 0 bad")

	_, err := acc.Feed("localparam REG_R = 0;")
	var de *scan.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if len(acc.Pending()) != 2 {
		t.Fatalf("failed flush must leave pending descriptors untouched")
	}
}

func TestAccumulatorSymbolicLocalparamValueIsZero(t *testing.T) {
	acc := NewAccumulator(0x40, "")
	feedAll(t, acc, "@register r")

	reg, err := acc.Feed("localparam REG_B = REG_A + 1;")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if reg == nil || reg.Name != "B" || reg.Address != 0x40 {
		t.Fatalf("expected B at the base address, got %+v", reg)
	}
	if len(acc.Pending()) != 0 {
		t.Fatalf("flush should clear pending descriptors")
	}
}

func TestScanEmitsInDeclarationOrder(t *testing.T) {
	src := strings.Join([]string{
		"module regs;",
		"  // @register lines inside comments are skipped",
		"  @register first",
		"  localparam REG_ONE = 1;\r",
		"  @register second",
		"  localparam REG_TWO = 'd2;",
		"endmodule",
	}, "\n")

	var names []string
	err := Scan(strings.NewReader(src), 0x1000, "M", func(r *Register) error {
		names = append(names, r.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if strings.Join(names, ",") != "M_ONE,M_TWO" {
		t.Fatalf("unexpected order %v", names)
	}
}

func TestScanReportsLineNumber(t *testing.T) {
	src := "@register r\n@field F x 0 RW 0 d\nlocalparam REG_R = 0;\n"
	err := Scan(strings.NewReader(src), 0, "", func(*Register) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected error on line 3, got %v", err)
	}
}

func TestScanHandlesLongLines(t *testing.T) {
	long := strings.Repeat("x", 200000)
	src := "@register " + long + "\nlocalparam REG_BIG = 0;\n"
	var got *Register
	err := Scan(strings.NewReader(src), 0, "", func(r *Register) error {
		got = r
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got == nil || got.Descriptors[0].Desc != long {
		t.Fatalf("long description was truncated")
	}
}

func TestFieldConstant(t *testing.T) {
	f := Field{Width: 8, Position: 4}
	if f.Spec() != 0x08040000 {
		t.Fatalf("unexpected spec %#08x", f.Spec())
	}
	if got := f.Constant(0x3008); got != 0x0804000000003008 {
		t.Fatalf("unexpected constant %#016x", got)
	}
}
