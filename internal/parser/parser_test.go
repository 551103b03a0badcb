package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/ast"
	"ember/internal/lexer"
)

func parse(t *testing.T, src string) *ast.Module {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	mod, err := NewParser(toks).ParseModule("test")
	require.NoError(t, err)
	return mod
}

func TestParseFunctionDefWithParamsAndReturn(t *testing.T) {
	mod := parse(t, `fn add(a, b) { return a + b }`)
	require.Len(t, mod.Body, 1)
	fn, ok := mod.Body[0].(*ast.FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []ast.Param{{Name: "a"}, {Name: "b"}}, fn.Params)
	require.Len(t, fn.Body.Stmts, 1)
	ret, ok := fn.Body.Stmts[0].(*ast.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseFunctionWithYieldMarksGenerator(t *testing.T) {
	mod := parse(t, `fn counter() { yield 1 yield 2 }`)
	fn := mod.Body[0].(*ast.FunctionDef)
	assert.True(t, fn.IsGenerator)
}

func TestParseClassDefWithParentAndMethods(t *testing.T) {
	mod := parse(t, `class Dog(Animal) { fn bark() { return 1 } }`)
	cls, ok := mod.Body[0].(*ast.ClassDef)
	require.True(t, ok)
	assert.Equal(t, "Dog", cls.Name)
	assert.Equal(t, "Animal", cls.Parent)
	require.Len(t, cls.Body, 1)
	_, ok = cls.Body[0].(*ast.FunctionDef)
	assert.True(t, ok)
}

func TestParseStructFields(t *testing.T) {
	mod := parse(t, `struct Point { x, y }`)
	st := mod.Body[0].(*ast.Struct)
	assert.Equal(t, []string{"x", "y"}, st.Fields)
}

func TestParseIfElseIfElseChain(t *testing.T) {
	mod := parse(t, `if x { return 1 } else if y { return 2 } else { return 3 }`)
	ifn := mod.Body[0].(*ast.If)
	elseIf, ok := ifn.Else.(*ast.If)
	require.True(t, ok)
	_, ok = elseIf.Else.(*ast.Block)
	assert.True(t, ok)
}

func TestParseWhileAndBreakContinue(t *testing.T) {
	mod := parse(t, `while x { break continue }`)
	w := mod.Body[0].(*ast.While)
	require.Len(t, w.Body.Stmts, 2)
	_, ok := w.Body.Stmts[0].(*ast.Break)
	assert.True(t, ok)
	_, ok = w.Body.Stmts[1].(*ast.Continue)
	assert.True(t, ok)
}

func TestParseForInOverRange(t *testing.T) {
	mod := parse(t, `for i in 0..10 { x = i }`)
	f := mod.Body[0].(*ast.For)
	assert.Equal(t, "i", f.Var)
	rng, ok := f.Iterable.(*ast.RangeExpr)
	require.True(t, ok)
	assert.Equal(t, int64(0), rng.Lo.(*ast.Constant).Value)
	assert.Equal(t, int64(10), rng.Hi.(*ast.Constant).Value)
}

func TestParseAssignTargetsVariableDotAndIndex(t *testing.T) {
	mod := parse(t, `
x = 1
obj.attr = 2
list[0] = 3
n += 4
`)
	_, ok := mod.Body[0].(*ast.Assign).Target.(*ast.Variable)
	assert.True(t, ok)
	_, ok = mod.Body[1].(*ast.Assign).Target.(*ast.Dot)
	assert.True(t, ok)
	_, ok = mod.Body[2].(*ast.Assign).Target.(*ast.Index)
	assert.True(t, ok)
	assign := mod.Body[3].(*ast.Assign)
	assert.Equal(t, "+=", assign.Op)
}

func TestParseTryCatchThrow(t *testing.T) {
	mod := parse(t, `try { throw "boom" } catch (e) { x = e }`)
	tb := mod.Body[0].(*ast.TryBlock)
	assert.Equal(t, "e", tb.ExcName)
	_, ok := tb.Body.Stmts[0].(*ast.Throw)
	assert.True(t, ok)
}

func TestParseImportWithDottedPathAndAlias(t *testing.T) {
	mod := parse(t, `import sync.mutex as sm`)
	imp := mod.Body[0].(*ast.Import)
	assert.Equal(t, []string{"sync", "mutex"}, imp.Dotted)
	assert.Equal(t, "sm", imp.Alias)
}

func TestParseLogicalAndOrPrecedence(t *testing.T) {
	mod := parse(t, `x = a and b or c`)
	assign := mod.Body[0].(*ast.Assign)
	orExpr, ok := assign.Value.(*ast.Logical)
	require.True(t, ok)
	assert.Equal(t, "or", orExpr.Op)
	andExpr, ok := orExpr.Left.(*ast.Logical)
	require.True(t, ok)
	assert.Equal(t, "and", andExpr.Op)
}

func TestParseMethodCallChain(t *testing.T) {
	mod := parse(t, `x = obj.method(1, 2).other`)
	assign := mod.Body[0].(*ast.Assign)
	dot := assign.Value.(*ast.Dot)
	assert.Equal(t, "other", dot.Name)
	call := dot.Object.(*ast.Call)
	require.Len(t, call.Args, 2)
	callee := call.Callee.(*ast.Dot)
	assert.Equal(t, "method", callee.Name)
}

func TestParseListLiteral(t *testing.T) {
	mod := parse(t, `x = [1, 2, 3]`)
	assign := mod.Body[0].(*ast.Assign)
	list := assign.Value.(*ast.List)
	require.Len(t, list.Items, 3)
}

func TestParseUnaryOperators(t *testing.T) {
	mod := parse(t, `x = -1
y = !flag
z = not flag`)
	assert.Equal(t, "-", mod.Body[0].(*ast.Assign).Value.(*ast.Unary).Op)
	assert.Equal(t, "!", mod.Body[1].(*ast.Assign).Value.(*ast.Unary).Op)
	assert.Equal(t, "not", mod.Body[2].(*ast.Assign).Value.(*ast.Unary).Op)
}

func TestParseAwaitExpression(t *testing.T) {
	mod := parse(t, `x = await f()`)
	assign := mod.Body[0].(*ast.Assign)
	_, ok := assign.Value.(*ast.Await)
	assert.True(t, ok)
}

func TestParseSyntaxErrorReportsLocation(t *testing.T) {
	toks := lexer.NewScannerWithFile("fn (", "bad.em").ScanTokens()
	_, err := NewParser(toks).ParseModule("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at bad.em:1:4")
}
