// Package code defines the bytecode instruction set and the per-function
// Code record the compiler produces (spec §3.3, §4.3). It depends only
// on oid, so every other layer can depend on it without cycles.
package code

import "ember/internal/oid"

// Op is a bytecode opcode. Opcodes are grouped by family per spec §4.3.
type Op uint8

const (
	// Load family
	OpLoadLocal Op = iota
	OpLoadConst
	OpLoadGlobal
	OpLoadUpvalue
	OpLoadNone
	OpLoadTrue
	OpLoadFalse

	// Store family
	OpStoreLocal
	OpStoreGlobal
	OpStoreUpvalue

	// Binary op family
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpReminder
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpEqual
	OpNotEqual
	OpGetItem
	OpSetItem
	OpRange
	OpDotGet
	OpDotSet
	OpAnd
	OpOr

	// Unary op family
	OpNot
	OpNegate

	// Stack maintenance
	OpPop
	OpDup

	// Call / return
	OpCall
	OpReturn

	// Control transfer
	OpJump
	OpBranchIfTrue
	OpBranchIfFalse
	OpWhileTest
	OpWhileEnd
	OpIfTest

	// Iteration
	OpIterSetup
	OpIterNext

	// Exceptions
	OpTryEnter
	OpTryExit
	OpCatch
	OpThrow

	// Class / closures / generators
	OpClassDef
	OpMakeClosure
	OpYield
	OpAwait

	// Modules
	OpImport

	// Collections
	OpBuildList
)

// Addr is a control-transfer target: a (block, instruction-offset) pair.
type Addr struct {
	Block  int
	Offset int
}

// Instr is one bytecode instruction. Arguments are typed by opcode:
// most opcodes use only a subset of these fields.
type Instr struct {
	Op     Op
	Int    int64      // local slot / arg count / constant index / literal int
	Str    string     // global/attr/import name, local name, catch var
	Float  float64    // literal float
	Target Addr       // jump / branch / iterator-exhaustion / try-catch target
	Line   int        // source line, used only for diagnostics
}

// Block is a basic block: a straight-line run of instructions whose only
// control transfers are at its end (or via explicit jump instructions
// targeting block boundaries, per spec's basic-block-grouped bytecode).
type Block []Instr

// Code is one compiled function (or a module's top-level code).
type Code struct {
	Name       string
	ModuleName string

	Blocks []Block

	// Constants holds ObjectId of pre-allocated literal objects, to be
	// interned by the compiler at Code-build time (spec §4.3).
	Constants []oid.ObjectId

	// VarMap maps a source-level local name to its slot index.
	VarMap map[string]int
	// CapturedVarMap maps a captured (closure-cell) name to its cell
	// index, a separate view from VarMap per spec §3.3.
	CapturedVarMap map[string]int
	NumLocals      int

	// LineMap maps an instruction address to a source line, used only
	// for diagnostics (uncaught-exception traces).
	LineMap map[Addr]int

	// Params is the ordered parameter-name list, used to bind arguments
	// to locals by position on call.
	Params []string
	IsGenerator bool
}

func New(name, module string) *Code {
	return &Code{
		Name:           name,
		ModuleName:     module,
		Blocks:         []Block{{}},
		VarMap:         make(map[string]int),
		CapturedVarMap: make(map[string]int),
		LineMap:        make(map[Addr]int),
	}
}

// At returns the instruction at addr, and whether it exists.
func (c *Code) At(addr Addr) (Instr, bool) {
	if addr.Block < 0 || addr.Block >= len(c.Blocks) {
		return Instr{}, false
	}
	blk := c.Blocks[addr.Block]
	if addr.Offset < 0 || addr.Offset >= len(blk) {
		return Instr{}, false
	}
	return blk[addr.Offset], true
}

// Next returns the address following addr within the same Code, and
// whether such an address exists (it may cross into the next block).
func (c *Code) Next(addr Addr) (Addr, bool) {
	blk := c.Blocks[addr.Block]
	if addr.Offset+1 < len(blk) {
		return Addr{addr.Block, addr.Offset + 1}, true
	}
	if addr.Block+1 < len(c.Blocks) {
		return Addr{addr.Block + 1, 0}, len(c.Blocks[addr.Block+1]) > 0
	}
	return Addr{}, false
}

// LineOf resolves the source line for an instruction address, for
// diagnostics only.
func (c *Code) LineOf(addr Addr) int {
	return c.LineMap[addr]
}
