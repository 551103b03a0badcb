// Package compiler lowers internal/ast trees into internal/code basic
// blocks: constant interning, jump backpatching, and the closure-capture
// convention internal/interp expects from OpMakeClosure.
//
// Grounded on the two-pass shape of hoisting_compiler.go (a name-scan
// pass feeding a trusting code generator), generalized from function
// hoisting to full free-variable capture analysis (capture.go) plus a
// straight recursive-descent emitter for everything else, in place of
// the original stmt_compiler.go/compiler.go visitor split.
package compiler

import (
	"fmt"
	"strings"

	"ember/internal/ast"
	"ember/internal/code"
	"ember/internal/object"
	"ember/internal/rt"
)

// Compiler lowers one module at a time. It owns the heap so literal
// constants can be interned (deduplicated) at compile time instead of
// allocating a fresh object per occurrence.
type Compiler struct {
	heap object.Heap
}

func New(heap object.Heap) *Compiler {
	return &Compiler{heap: heap}
}

// CompileModule resolves captures and lowers mod's top-level statements
// into a *code.Code representing the module body. Internal compiler
// invariants that would indicate a malformed AST panic; CompileModule
// recovers and reports them as a KindFatal error rather than crashing
// the host process.
func (c *Compiler) CompileModule(mod *ast.Module) (cd *code.Code, err error) {
	defer func() {
		if r := recover(); r != nil {
			cd = nil
			err = rt.Newf(rt.KindFatal, "compile error: %v", r)
		}
	}()
	ResolveCaptures(mod)
	fs := c.newFuncState(nil, "<module>", mod.Name, nil)
	fs.hoistAndCompile(mod.Body)
	fs.finish()
	return fs.code, nil
}

// jumpPatch names an already-emitted instruction whose Target field is
// filled in once the destination block is known.
type jumpPatch struct {
	block, idx int
}

type pendingCapture struct {
	name               string
	fromEnclosingLocal bool
	slot               int // enclosing local slot, or enclosing upvalue index
}

type loopFrame struct {
	continueTarget code.Addr
	breaks         []jumpPatch
}

// funcState is the compiler's state for one function (or the module
// top level) being lowered into its own *code.Code.
type funcState struct {
	c         *Compiler
	code      *code.Code
	cur       int // index of the block currently being appended to
	enclosing *funcState

	constIndex map[string]int

	pendingCaptures []pendingCapture
	loops           []*loopFrame
}

func (c *Compiler) newFuncState(enclosing *funcState, name, module string, params []ast.Param) *funcState {
	cd := code.New(name, module)
	for _, p := range params {
		cd.VarMap[p.Name] = len(cd.VarMap)
		cd.Params = append(cd.Params, p.Name)
	}
	cd.NumLocals = len(cd.VarMap)
	return &funcState{
		c:          c,
		code:       cd,
		enclosing:  enclosing,
		constIndex: make(map[string]int),
	}
}

func (fs *funcState) newBlock() int {
	fs.code.Blocks = append(fs.code.Blocks, code.Block{})
	return len(fs.code.Blocks) - 1
}

func (fs *funcState) emit(instr code.Instr) {
	fs.code.Blocks[fs.cur] = append(fs.code.Blocks[fs.cur], instr)
}

func (fs *funcState) emitJump(op code.Op) jumpPatch {
	idx := len(fs.code.Blocks[fs.cur])
	fs.emit(code.Instr{Op: op})
	return jumpPatch{fs.cur, idx}
}

func (fs *funcState) patch(p jumpPatch, target code.Addr) {
	fs.code.Blocks[p.block][p.idx].Target = target
}

func (fs *funcState) declareLocal(name string) int {
	if slot, ok := fs.code.VarMap[name]; ok {
		return slot
	}
	slot := len(fs.code.VarMap)
	fs.code.VarMap[name] = slot
	if slot+1 > fs.code.NumLocals {
		fs.code.NumLocals = slot + 1
	}
	return slot
}

func (fs *funcState) resolveLocal(name string) (int, bool) {
	slot, ok := fs.code.VarMap[name]
	return slot, ok
}

// resolveCapture makes name available to fs as an upvalue, recursively
// threading it through enclosing function scopes when name is bound
// further out than fs's immediate parent (spec §3.3 closures).
func (fs *funcState) resolveCapture(name string) (int, bool) {
	if idx, ok := fs.code.CapturedVarMap[name]; ok {
		return idx, true
	}
	if fs.enclosing == nil {
		return 0, false
	}
	if slot, ok := fs.enclosing.resolveLocal(name); ok {
		idx := len(fs.code.CapturedVarMap)
		fs.code.CapturedVarMap[name] = idx
		fs.pendingCaptures = append(fs.pendingCaptures, pendingCapture{name: name, fromEnclosingLocal: true, slot: slot})
		return idx, true
	}
	if eidx, ok := fs.enclosing.resolveCapture(name); ok {
		idx := len(fs.code.CapturedVarMap)
		fs.code.CapturedVarMap[name] = idx
		fs.pendingCaptures = append(fs.pendingCaptures, pendingCapture{name: name, fromEnclosingLocal: false, slot: eidx})
		return idx, true
	}
	return 0, false
}

func (fs *funcState) emitLoadName(name string) {
	if slot, ok := fs.resolveLocal(name); ok {
		fs.emit(code.Instr{Op: code.OpLoadLocal, Int: int64(slot)})
		return
	}
	if idx, ok := fs.resolveCapture(name); ok {
		fs.emit(code.Instr{Op: code.OpLoadUpvalue, Int: int64(idx)})
		return
	}
	fs.emit(code.Instr{Op: code.OpLoadGlobal, Str: name})
}

func (fs *funcState) emitStoreName(name string) {
	if slot, ok := fs.resolveLocal(name); ok {
		fs.emit(code.Instr{Op: code.OpStoreLocal, Int: int64(slot)})
		return
	}
	if idx, ok := fs.resolveCapture(name); ok {
		fs.emit(code.Instr{Op: code.OpStoreUpvalue, Int: int64(idx)})
		return
	}
	fs.emit(code.Instr{Op: code.OpStoreGlobal, Str: name})
}

func (fs *funcState) intern(key string, build func() object.Object) int {
	if idx, ok := fs.constIndex[key]; ok {
		return idx
	}
	id := fs.c.heap.Alloc(build())
	idx := len(fs.code.Constants)
	fs.code.Constants = append(fs.code.Constants, id)
	fs.constIndex[key] = idx
	return idx
}

func (fs *funcState) finish() {
	fs.emit(code.Instr{Op: code.OpLoadNone})
	fs.emit(code.Instr{Op: code.OpReturn})
}

// hoistAndCompile compiles module-level function and class declarations
// before the rest of the body, so one def can forward-reference another
// declared later in the same file (grounded on hoisting_compiler.go's
// collectFunctions/precompileFunctions split, narrowed to module scope).
func (fs *funcState) hoistAndCompile(stmts []ast.Node) {
	var hoisted, rest []ast.Node
	for _, s := range stmts {
		switch s.(type) {
		case *ast.FunctionDef, *ast.ClassDef:
			hoisted = append(hoisted, s)
		default:
			rest = append(rest, s)
		}
	}
	for _, s := range hoisted {
		fs.compileStmt(s)
	}
	for _, s := range rest {
		fs.compileStmt(s)
	}
}

func (fs *funcState) compileBlockStmts(stmts []ast.Node) {
	for _, s := range stmts {
		fs.compileStmt(s)
	}
}

func (fs *funcState) compileStmt(n ast.Node) {
	switch v := n.(type) {
	case *ast.Block:
		fs.compileBlockStmts(v.Stmts)
	case *ast.If:
		fs.compileIf(v)
	case *ast.While:
		fs.compileWhile(v)
	case *ast.For:
		fs.compileFor(v)
	case *ast.Return:
		fs.compileReturn(v)
	case *ast.Assign:
		fs.compileAssign(v)
	case *ast.Expr:
		fs.compileExpr(v.X)
		fs.emit(code.Instr{Op: code.OpPop})
	case *ast.FunctionDef:
		fs.compileFunctionDefStmt(v)
	case *ast.MakeClosure:
		if v.Fn.Name == "" {
			panic("MakeClosure in statement position must wrap a named FunctionDef")
		}
		fs.compileExpr(v)
		slot := fs.declareLocal(v.Fn.Name)
		fs.emit(code.Instr{Op: code.OpStoreLocal, Int: int64(slot)})
	case *ast.ClassDef:
		fs.compileClassDef(v)
	case *ast.Struct:
		fs.compileStruct(v)
	case *ast.TryBlock:
		fs.compileTry(v)
	case *ast.Throw:
		fs.compileExpr(v.Value)
		fs.emit(code.Instr{Op: code.OpThrow})
	case *ast.Import:
		fs.compileImport(v)
	case *ast.Break:
		fs.compileBreak()
	case *ast.Continue:
		fs.compileContinue()
	default:
		panic(fmt.Sprintf("unsupported statement node %T", n))
	}
}

func (fs *funcState) compileExpr(n ast.Node) {
	switch v := n.(type) {
	case *ast.Constant:
		fs.compileConstant(v)
	case *ast.Variable:
		fs.emitLoadName(v.Name)
	case *ast.Binary:
		fs.compileBinary(v)
	case *ast.Logical:
		fs.compileLogical(v)
	case *ast.Unary:
		fs.compileUnary(v)
	case *ast.Call:
		fs.compileCall(v)
	case *ast.Dot:
		fs.compileExpr(v.Object)
		fs.emit(code.Instr{Op: code.OpDotGet, Str: v.Name})
	case *ast.Index:
		fs.compileExpr(v.Object)
		fs.compileExpr(v.Key)
		fs.emit(code.Instr{Op: code.OpGetItem})
	case *ast.List:
		for _, it := range v.Items {
			fs.compileExpr(it)
		}
		fs.emit(code.Instr{Op: code.OpBuildList, Int: int64(len(v.Items))})
	case *ast.RangeExpr:
		fs.compileExpr(v.Lo)
		fs.compileExpr(v.Hi)
		fs.emit(code.Instr{Op: code.OpRange})
	case *ast.Yield:
		fs.compileExpr(v.Value)
		fs.emit(code.Instr{Op: code.OpYield})
		fs.code.IsGenerator = true
	case *ast.Await:
		fs.compileExpr(v.Value)
		fs.emit(code.Instr{Op: code.OpAwait})
	case *ast.FunctionDef:
		fs.compileFunctionValue(v, nil)
	case *ast.MakeClosure:
		fs.compileFunctionValue(v.Fn, v.Captures)
	default:
		panic(fmt.Sprintf("unsupported expression node %T", n))
	}
}

func (fs *funcState) compileConstant(n *ast.Constant) {
	switch v := n.Value.(type) {
	case nil:
		fs.emit(code.Instr{Op: code.OpLoadNone})
	case bool:
		if v {
			fs.emit(code.Instr{Op: code.OpLoadTrue})
		} else {
			fs.emit(code.Instr{Op: code.OpLoadFalse})
		}
	case int:
		fs.compileConstant(&ast.Constant{Value: int64(v)})
	case int64:
		idx := fs.intern(fmt.Sprintf("i:%d", v), func() object.Object { return &object.Integer{Value: v} })
		fs.emit(code.Instr{Op: code.OpLoadConst, Int: int64(idx)})
	case float64:
		idx := fs.intern(fmt.Sprintf("f:%v", v), func() object.Object { return &object.Float{Value: v} })
		fs.emit(code.Instr{Op: code.OpLoadConst, Int: int64(idx)})
	case string:
		idx := fs.intern(fmt.Sprintf("s:%s", v), func() object.Object { return &object.String{Value: v} })
		fs.emit(code.Instr{Op: code.OpLoadConst, Int: int64(idx)})
	default:
		panic(fmt.Sprintf("unsupported constant literal type %T", v))
	}
}

func (fs *funcState) compileBinary(v *ast.Binary) {
	fs.compileExpr(v.Left)
	fs.compileExpr(v.Right)
	op, ok := binaryOpFor(v.Op)
	if !ok {
		panic("unknown binary operator " + v.Op)
	}
	fs.emit(code.Instr{Op: op})
}

func binaryOpFor(op string) (code.Op, bool) {
	switch op {
	case "+":
		return code.OpAdd, true
	case "-":
		return code.OpSub, true
	case "*":
		return code.OpMul, true
	case "/":
		return code.OpDiv, true
	case "%":
		return code.OpReminder, true
	case "<":
		return code.OpLess, true
	case ">":
		return code.OpGreater, true
	case "<=":
		return code.OpLessEqual, true
	case ">=":
		return code.OpGreaterEqual, true
	case "==":
		return code.OpEqual, true
	case "!=":
		return code.OpNotEqual, true
	default:
		return 0, false
	}
}

func compoundBinaryOp(op string) (code.Op, bool) {
	switch op {
	case "+=":
		return code.OpAdd, true
	case "-=":
		return code.OpSub, true
	case "*=":
		return code.OpMul, true
	case "/=":
		return code.OpDiv, true
	case "%=":
		return code.OpReminder, true
	default:
		return 0, false
	}
}

// compileLogical implements short-circuit and/or: the right operand is
// only evaluated when the left doesn't already decide the result.
func (fs *funcState) compileLogical(v *ast.Logical) {
	fs.compileExpr(v.Left)
	fs.emit(code.Instr{Op: code.OpDup})
	var branch jumpPatch
	if v.Op == "and" {
		branch = fs.emitJump(code.OpBranchIfFalse)
	} else {
		branch = fs.emitJump(code.OpBranchIfTrue)
	}
	fs.emit(code.Instr{Op: code.OpPop})
	fs.compileExpr(v.Right)
	end := fs.emitJump(code.OpJump)
	after := fs.newBlock()
	fs.patch(branch, code.Addr{Block: after})
	fs.patch(end, code.Addr{Block: after})
	fs.cur = after
}

func (fs *funcState) compileUnary(v *ast.Unary) {
	fs.compileExpr(v.X)
	switch v.Op {
	case "-":
		fs.emit(code.Instr{Op: code.OpNegate})
	case "!", "not":
		fs.emit(code.Instr{Op: code.OpNot})
	default:
		panic("unknown unary operator " + v.Op)
	}
}

// compileCall lowers a call expression, recognizing Callee==Dot as a
// method call: the receiver is pushed once, duplicated for the attribute
// lookup, then prepended to the argument list via OpCall's "self"
// convention (matching internal/interp's receiver-prepend handling).
func (fs *funcState) compileCall(v *ast.Call) {
	if dot, ok := v.Callee.(*ast.Dot); ok {
		fs.compileExpr(dot.Object)
		fs.emit(code.Instr{Op: code.OpDup})
		fs.emit(code.Instr{Op: code.OpDotGet, Str: dot.Name})
		for _, a := range v.Args {
			fs.compileExpr(a)
		}
		fs.emit(code.Instr{Op: code.OpCall, Int: int64(len(v.Args)), Str: "self"})
		return
	}
	fs.compileExpr(v.Callee)
	for _, a := range v.Args {
		fs.compileExpr(a)
	}
	fs.emit(code.Instr{Op: code.OpCall, Int: int64(len(v.Args))})
}

func (fs *funcState) compileAssign(v *ast.Assign) {
	compound, hasCompound := compoundBinaryOp(v.Op)
	switch t := v.Target.(type) {
	case *ast.Variable:
		if hasCompound {
			fs.emitLoadName(t.Name)
			fs.compileExpr(v.Value)
			fs.emit(code.Instr{Op: compound})
		} else {
			fs.compileExpr(v.Value)
		}
		fs.emitStoreName(t.Name)
	case *ast.Dot:
		// Compound assignment through an attribute/subscript target
		// isn't supported: re-evaluating the receiver to read-then-write
		// without a temporary would double its side effects.
		if hasCompound {
			panic("compound assignment to an attribute target is not supported")
		}
		fs.compileExpr(t.Object)
		fs.compileExpr(v.Value)
		fs.emit(code.Instr{Op: code.OpDotSet, Str: t.Name})
	case *ast.Index:
		if hasCompound {
			panic("compound assignment to a subscript target is not supported")
		}
		fs.compileExpr(t.Object)
		fs.compileExpr(t.Key)
		fs.compileExpr(v.Value)
		fs.emit(code.Instr{Op: code.OpSetItem})
	default:
		panic(fmt.Sprintf("invalid assignment target %T", v.Target))
	}
}

func (fs *funcState) compileReturn(v *ast.Return) {
	if v.Value != nil {
		fs.compileExpr(v.Value)
	} else {
		fs.emit(code.Instr{Op: code.OpLoadNone})
	}
	fs.emit(code.Instr{Op: code.OpReturn})
}

// compileIf never leaves a block empty: with no else, the false branch
// is patched straight to the join block instead of through an empty
// interstitial one (code.Code.At/Next require a non-empty block).
func (fs *funcState) compileIf(v *ast.If) {
	fs.compileExpr(v.Test)
	branch := fs.emitJump(code.OpBranchIfFalse)
	thenBlock := fs.newBlock()
	fs.cur = thenBlock
	fs.compileBlockStmts(v.Then.Stmts)
	toAfter := fs.emitJump(code.OpJump)

	if v.Else == nil {
		after := fs.newBlock()
		fs.patch(branch, code.Addr{Block: after})
		fs.patch(toAfter, code.Addr{Block: after})
		fs.cur = after
		return
	}

	elseBlock := fs.newBlock()
	fs.patch(branch, code.Addr{Block: elseBlock})
	fs.cur = elseBlock
	switch e := v.Else.(type) {
	case *ast.Block:
		fs.compileBlockStmts(e.Stmts)
	case *ast.If:
		fs.compileIf(e)
	default:
		panic(fmt.Sprintf("unsupported else node %T", v.Else))
	}
	toAfter2 := fs.emitJump(code.OpJump)

	after := fs.newBlock()
	fs.patch(toAfter, code.Addr{Block: after})
	fs.patch(toAfter2, code.Addr{Block: after})
	fs.cur = after
}

func (fs *funcState) compileWhile(v *ast.While) {
	toHeader := fs.emitJump(code.OpJump)
	header := fs.newBlock()
	fs.patch(toHeader, code.Addr{Block: header})
	fs.cur = header
	fs.compileExpr(v.Test)
	branch := fs.emitJump(code.OpWhileTest)

	body := fs.newBlock()
	fs.cur = body
	lf := &loopFrame{continueTarget: code.Addr{Block: header}}
	fs.loops = append(fs.loops, lf)
	fs.compileBlockStmts(v.Body.Stmts)
	fs.loops = fs.loops[:len(fs.loops)-1]
	back := fs.emitJump(code.OpJump)
	fs.patch(back, code.Addr{Block: header})

	after := fs.newBlock()
	fs.patch(branch, code.Addr{Block: after})
	for _, b := range lf.breaks {
		fs.patch(b, code.Addr{Block: after})
	}
	fs.cur = after
}

func (fs *funcState) compileFor(v *ast.For) {
	fs.compileExpr(v.Iterable)
	fs.emit(code.Instr{Op: code.OpIterSetup})
	toHeader := fs.emitJump(code.OpJump)
	header := fs.newBlock()
	fs.patch(toHeader, code.Addr{Block: header})
	fs.cur = header
	branch := fs.emitJump(code.OpIterNext)
	slot := fs.declareLocal(v.Var)
	fs.emit(code.Instr{Op: code.OpStoreLocal, Int: int64(slot)})

	lf := &loopFrame{continueTarget: code.Addr{Block: header}}
	fs.loops = append(fs.loops, lf)
	fs.compileBlockStmts(v.Body.Stmts)
	fs.loops = fs.loops[:len(fs.loops)-1]
	back := fs.emitJump(code.OpJump)
	fs.patch(back, code.Addr{Block: header})

	after := fs.newBlock()
	fs.patch(branch, code.Addr{Block: after})
	for _, b := range lf.breaks {
		fs.patch(b, code.Addr{Block: after})
	}
	fs.cur = after
}

func (fs *funcState) compileBreak() {
	if len(fs.loops) == 0 {
		panic("break outside a loop")
	}
	lf := fs.loops[len(fs.loops)-1]
	p := fs.emitJump(code.OpJump)
	lf.breaks = append(lf.breaks, p)
}

func (fs *funcState) compileContinue() {
	if len(fs.loops) == 0 {
		panic("continue outside a loop")
	}
	lf := fs.loops[len(fs.loops)-1]
	p := fs.emitJump(code.OpJump)
	fs.patch(p, lf.continueTarget)
}

func (fs *funcState) compileTry(v *ast.TryBlock) {
	enter := fs.emitJump(code.OpTryEnter)
	fs.code.Blocks[enter.block][enter.idx].Str = v.ExcName
	fs.compileBlockStmts(v.Body.Stmts)
	fs.emit(code.Instr{Op: code.OpTryExit})
	skip := fs.emitJump(code.OpJump)

	handler := fs.newBlock()
	fs.patch(enter, code.Addr{Block: handler})
	fs.cur = handler
	if v.ExcName != "" {
		slot := fs.declareLocal(v.ExcName)
		fs.emit(code.Instr{Op: code.OpStoreLocal, Int: int64(slot)})
	} else {
		fs.emit(code.Instr{Op: code.OpPop})
	}
	if v.CatchBody != nil {
		fs.compileBlockStmts(v.CatchBody.Stmts)
	}

	after := fs.newBlock()
	fs.patch(skip, code.Addr{Block: after})
	fs.cur = after
}

func (fs *funcState) compileImport(v *ast.Import) {
	fs.emit(code.Instr{Op: code.OpImport, Str: strings.Join(v.Dotted, ".")})
	name := v.Alias
	if name == "" && len(v.Dotted) > 0 {
		name = v.Dotted[len(v.Dotted)-1]
	}
	slot := fs.declareLocal(name)
	fs.emit(code.Instr{Op: code.OpStoreLocal, Int: int64(slot)})
}

// compileFunctionValue lowers fd into its own *code.Code, allocates a
// CodeObj constant in the enclosing function's constant pool, emits the
// capture-value pushes its pendingCaptures recorded during that nested
// compilation (either OpLoadLocal against this function's own slot, or
// OpLoadUpvalue forwarding a capture this function itself received from
// further out), then MakeClosure. explicitCaptures is informational only
// (from a resolved ast.MakeClosure); resolution of each name still goes
// through fs's normal resolveLocal/resolveCapture so multi-level chains
// are threaded correctly regardless of the order capture.go recorded.
func (fs *funcState) compileFunctionValue(fd *ast.FunctionDef, explicitCaptures []string) {
	inner := fs.c.newFuncState(fs, fd.Name, fs.code.ModuleName, fd.Params)
	inner.code.IsGenerator = fd.IsGenerator
	for _, name := range explicitCaptures {
		inner.resolveCapture(name)
	}
	inner.compileBlockStmts(fd.Body.Stmts)
	inner.finish()

	codeObjID := fs.c.heap.Alloc(&object.CodeObj{Code: inner.code})
	idx := len(fs.code.Constants)
	fs.code.Constants = append(fs.code.Constants, codeObjID)

	for _, pc := range inner.pendingCaptures {
		if pc.fromEnclosingLocal {
			fs.emit(code.Instr{Op: code.OpLoadLocal, Int: int64(pc.slot)})
		} else {
			fs.emit(code.Instr{Op: code.OpLoadUpvalue, Int: int64(pc.slot)})
		}
	}
	fs.emit(code.Instr{Op: code.OpMakeClosure, Int: int64(idx), Target: code.Addr{Offset: len(inner.pendingCaptures)}})
}

func (fs *funcState) compileFunctionDefStmt(fd *ast.FunctionDef) {
	fs.compileFunctionValue(fd, nil)
	slot := fs.declareLocal(fd.Name)
	fs.emit(code.Instr{Op: code.OpStoreLocal, Int: int64(slot)})
}

// compileClassDef matches OpClassDef's has-parent convention (parent
// popped from the stack only when Target.Offset==1) and builds the class
// body by calling each method closure into a DotSet against the fresh
// class object, left on the stack throughout.
func (fs *funcState) compileClassDef(v *ast.ClassDef) {
	hasParent := v.Parent != ""
	if hasParent {
		fs.emitLoadName(v.Parent)
	}
	instr := code.Instr{Op: code.OpClassDef, Str: v.Name}
	if hasParent {
		instr.Target = code.Addr{Offset: 1}
	}
	fs.emit(instr)

	slot := fs.declareLocal(v.Name)
	fs.emit(code.Instr{Op: code.OpDup})
	fs.emit(code.Instr{Op: code.OpStoreLocal, Int: int64(slot)})

	for _, member := range v.Body {
		fd, ok := member.(*ast.FunctionDef)
		if !ok {
			if mc, ok := member.(*ast.MakeClosure); ok {
				fd = mc.Fn
			} else {
				continue
			}
		}
		fs.emit(code.Instr{Op: code.OpDup})
		fs.compileFunctionValue(fd, nil)
		fs.emit(code.Instr{Op: code.OpDotSet, Str: fd.Name})
	}
	fs.emit(code.Instr{Op: code.OpPop})
}

// compileStruct creates a plain field-only class: field names are
// documentation only at this layer, enforced (if at all) by the
// instance-construction convention in internal/vm.
func (fs *funcState) compileStruct(v *ast.Struct) {
	fs.emit(code.Instr{Op: code.OpClassDef, Str: v.Name})
	slot := fs.declareLocal(v.Name)
	fs.emit(code.Instr{Op: code.OpStoreLocal, Int: int64(slot)})
}
