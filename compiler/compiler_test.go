package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesper-lang/vesper/errors"
	"github.com/vesper-lang/vesper/opcodes"
	"github.com/vesper-lang/vesper/registry"
)

func compileProgram(t *testing.T, src string) (*Program, *errors.Bag) {
	t.Helper()
	bag := errors.NewBag(nil)
	prog := Compile("test.vsp", src, bag, registry.New())
	return prog, bag
}

// Every literal string constant is interned once: two occurrences of
// the same string share one constant-pool slot.
func TestStringConstantsAreInterned(t *testing.T) {
	prog, bag := compileProgram(t, `<?php $a = "dup"; $b = "dup"; ?>`)
	require.False(t, bag.HasErrors())

	count := 0
	firstSlot := -1
	for i, v := range prog.Consts {
		if v.ToString() == "dup" {
			count++
			if firstSlot == -1 {
				firstSlot = i
			}
		}
	}
	assert.Equal(t, 1, count, "the constant pool should hold exactly one \"dup\" entry")
	assert.Greater(t, firstSlot, 2, "interned string constants follow the three reserved slots")
}

// Reserved constant-pool slots 0/1/2 are null/true/false, per spec.md
// §4.3.
func TestReservedConstantSlots(t *testing.T) {
	prog, bag := compileProgram(t, `<?php ?>`)
	require.False(t, bag.HasErrors())
	require.GreaterOrEqual(t, len(prog.Consts), 3)
	assert.Equal(t, "", prog.Consts[0].ToString())
	assert.True(t, prog.Consts[1].ToBool())
	assert.False(t, prog.Consts[2].ToBool())
}

// Every forward jump emitted for an if/else chain is patched to a real
// instruction index before compilation finishes (no zero P2 left
// dangling mid-stream, and JMP/JZ never jump to themselves).
func TestIfElseJumpsArePatched(t *testing.T) {
	prog, bag := compileProgram(t, `<?php if ($a) { echo 1; } else { echo 2; } ?>`)
	require.False(t, bag.HasErrors())

	for i, instr := range prog.Global.Code {
		if instr.Op == opcodes.OpJz || instr.Op == opcodes.OpJmp {
			target := int(instr.P2)
			assert.NotEqual(t, i, target, "jump at %d must not target itself", i)
			assert.Greater(t, target, i, "forward jump target should land after the jump")
			assert.LessOrEqual(t, target, len(prog.Global.Code))
		}
	}
}

// `break 2` inside nested loops resolves to the end of the outer loop,
// not the inner one.
func TestBreakWithLevelTargetsOuterLoop(t *testing.T) {
	prog, bag := compileProgram(t, `<?php
for ($i=0;$i<2;$i++) {
  for ($j=0;$j<2;$j++) {
    if ($j==1) break 2;
  }
}
?>`)
	require.False(t, bag.HasErrors())

	var jmps []int
	for _, instr := range prog.Global.Code {
		if instr.Op == opcodes.OpJmp {
			jmps = append(jmps, int(instr.P2))
		}
	}
	require.NotEmpty(t, jmps)
	maxTarget := 0
	for _, tgt := range jmps {
		if tgt > maxTarget {
			maxTarget = tgt
		}
	}
	assert.Equal(t, len(prog.Global.Code)-1, maxTarget, "break 2 lands on the HALT after the outer loop")
}

// An unresolved goto (no matching label in the function) is reported
// as a diagnostic rather than silently compiled.
func TestUnresolvedGotoReportsDiagnostic(t *testing.T) {
	_, bag := compileProgram(t, `<?php goto nowhere; ?>`)
	assert.True(t, bag.HasErrors())
}

// A goto to a label declared later in the same scope resolves and
// compiles without error.
func TestGotoResolvesForwardLabel(t *testing.T) {
	_, bag := compileProgram(t, `<?php goto done; echo "skipped"; done: echo "reached"; ?>`)
	assert.False(t, bag.HasErrors())
}
