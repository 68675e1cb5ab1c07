package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesper-lang/vesper/stdlib/builtins"
)

// run compiles and executes source against a fresh Engine, returning
// everything the default output sink collected. It fails the test if
// compilation produced diagnostics or execution returned an error.
func run(t *testing.T, source string) string {
	t.Helper()
	eng := New()
	var buf bytes.Buffer
	eng.SetDefaultOutput(&buf)

	script := eng.Compile("test.vsp", source, DefaultConfig())
	builtins.Register(script.Machine.Reg)
	require.Empty(t, script.Bag.Diagnostics, "unexpected diagnostics: %v", script.Bag.Diagnostics)
	require.NoError(t, script.Run())
	return buf.String()
}

// S1: hello output via the echo-shorthand tag.
func TestScenarioHelloOutput(t *testing.T) {
	assert.Equal(t, "hello", run(t, `<?= "hello" ?>`))
}

// S2: integer arithmetic respects operator precedence.
func TestScenarioArithmeticPrecedence(t *testing.T) {
	assert.Equal(t, "14", run(t, `<?php echo 2 + 3 * 4; ?>`))
}

// S3: ordered-map iteration preserves insertion order, including a
// trailing auto-indexed integer key.
func TestScenarioOrderedMapIterationOrder(t *testing.T) {
	out := run(t, `<?php $a = ["x"=>1,"y"=>2,10=>3]; foreach($a as $k=>$v) echo "$k=$v;"; ?>`)
	assert.Equal(t, "x=1;y=2;10=3;", out)
}

// S4: overload selection by declared parameter type.
func TestScenarioOverloadSelectionByType(t *testing.T) {
	out := run(t, `<?php
function f(int $x){ echo "i"; }
function f(string $x){ echo "s"; }
f(5); f("a");
?>`)
	assert.Equal(t, "is", out)
}

// S5: an exception thrown inside a called function propagates to the
// caller's try/catch.
func TestScenarioExceptionPropagationAcrossCall(t *testing.T) {
	out := run(t, `<?php
function g(){ throw new Exception("e"); }
try { g(); } catch(Exception $x){ echo "caught:".$x->getMessage(); }
?>`)
	assert.Equal(t, "caught:e", out)
}

// S6: a bare `break 2` inside a nested loop unwinds both loops.
func TestScenarioBreakWithLevel(t *testing.T) {
	out := run(t, `<?php
for($i=0;$i<2;$i++){
  for($j=0;$j<2;$j++){
    if($j==1) break 2;
    echo "$i$j;";
  }
}
echo "done";
?>`)
	assert.Equal(t, "00;done", out)
}

func TestScenarioLooseVsStrictEquality(t *testing.T) {
	out := run(t, `<?php
var_dump(0 == "a");
echo "\n";
var_dump("1" === 1);
echo "\n";
var_dump(1 === 1);
?>`)
	assert.Contains(t, out, "bool(false)")
	assert.Contains(t, out, "bool(true)")
}

func TestScenarioClassInheritanceAndMagicToString(t *testing.T) {
	out := run(t, `<?php
class Animal {
  protected string $name;
  function __construct(string $name) { $this->name = $name; }
  function speak() { return "..."; }
  function __toString() { return $this->name . " says " . $this->speak(); }
}
class Dog extends Animal {
  function speak() { return "Woof"; }
}
$d = new Dog("Rex");
echo $d;
?>`)
	assert.Equal(t, "Rex says Woof", out)
}

func TestScenarioReferenceAssignmentAliases(t *testing.T) {
	out := run(t, `<?php
$a = 1;
$b = &$a;
$b = 2;
echo $a;
?>`)
	assert.Equal(t, "2", out)
}

func TestScenarioStaticVariablePersistsAcrossCalls(t *testing.T) {
	out := run(t, `<?php
function counter(){ static $n = 0; $n++; echo $n; }
counter(); counter(); counter();
?>`)
	assert.Equal(t, "123", out)
}

func TestScenarioNullCoalesceKeepsFalsyNonNull(t *testing.T) {
	out := run(t, `<?php $a = 0; echo $a ?? 5; echo null ?? "x"; ?>`)
	assert.Equal(t, "0x", out)
}

func TestScenarioClassConstantFetch(t *testing.T) {
	out := run(t, `<?php class C { const FOO = 41; } echo C::FOO + 1; ?>`)
	assert.Equal(t, "42", out)
}

func TestScenarioFinallyRunsOnceAndCatchCanReturn(t *testing.T) {
	out := run(t, `<?php
function h(){
  try { throw new Exception("x"); }
  catch(Exception $e){ return "c"; }
  finally { echo "f"; }
}
echo h();
?>`)
	assert.Equal(t, "fc", out)
}

func TestScenarioSwitchFallthroughAndBreak(t *testing.T) {
	out := run(t, `<?php
switch(2){
  case 1: echo "a";
  case 2: echo "b";
  case 3: echo "c"; break;
  default: echo "d";
}
echo "!";
?>`)
	assert.Equal(t, "bc!", out)
}

func TestScenarioNestedSubscriptAssignmentVivifies(t *testing.T) {
	out := run(t, `<?php $m = []; $m["a"]["b"] = 7; echo $m["a"]["b"]; ?>`)
	assert.Equal(t, "7", out)
}

func TestScenarioGotoBackwardLoop(t *testing.T) {
	out := run(t, `<?php $i = 0; start: $i++; if ($i < 3) goto start; echo $i; ?>`)
	assert.Equal(t, "3", out)
}

func TestScenarioClosureUseCapture(t *testing.T) {
	out := run(t, `<?php
$mul = 3;
$f = function($x) use ($mul) { return $x * $mul; };
echo $f(7);
?>`)
	assert.Equal(t, "21", out)
}

func TestScenarioArrowFunctionAutoCapture(t *testing.T) {
	out := run(t, `<?php $n = 10; $f = fn($x) => $x + $n; echo $f(5); ?>`)
	assert.Equal(t, "15", out)
}

func TestScenarioDestructorRunsOnUnsetOverwriteAndFrameExit(t *testing.T) {
	out := run(t, `<?php
class D {
  public $name;
  function __construct($n){ $this->name = $n; }
  function __destruct(){ echo "~" . $this->name . ";"; }
}
$a = new D("u");
unset($a);
$b = new D("o");
$b = 1;
function scope(){ $t = new D("f"); echo "in;"; }
scope();
echo "end";
?>`)
	assert.Equal(t, "~u;~o;in;~f;end", out)
}

func TestScenarioDestructorRunsAtScriptEnd(t *testing.T) {
	out := run(t, `<?php
class E { function __destruct(){ echo "~e"; } }
$g = new E();
echo "end;";
?>`)
	assert.Equal(t, "end;~e", out)
}

func TestScenarioReturnedObjectSurvivesFrameExit(t *testing.T) {
	out := run(t, `<?php
class R {
  function __destruct(){ echo "~r;"; }
}
function mk(){ $t = new R(); return $t; }
$x = mk();
echo "mid;";
unset($x);
echo "end";
?>`)
	assert.Equal(t, "mid;~r;end", out)
}

func TestScenarioForeachByRefWritesBack(t *testing.T) {
	out := run(t, `<?php
$a = [1,2,3];
foreach ($a as &$v) { $v = $v * 10; }
echo implode(",", $a);
?>`)
	assert.Equal(t, "10,20,30", out)
}

func TestScenarioForeachByRefFlushesOnBreak(t *testing.T) {
	out := run(t, `<?php
$a = [1,2,3];
foreach ($a as &$v) { $v = $v * 10; if ($v == 20) break; }
echo implode(",", $a);
?>`)
	assert.Equal(t, "10,20,3", out)
}

func TestUncaughtExceptionHalts(t *testing.T) {
	eng := New()
	var buf bytes.Buffer
	eng.SetDefaultOutput(&buf)
	script := eng.Compile("test.vsp", `<?php echo "before"; throw new Exception("boom"); echo "after";`, DefaultConfig())
	require.Empty(t, script.Bag.Diagnostics)
	err := script.Run()
	assert.Error(t, err)
	assert.Equal(t, "before", buf.String())
}
