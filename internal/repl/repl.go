// Package repl implements the interactive read-eval-print loop (spec
// §6.4 collaborator surface: lex, parse, compile, start), wired to
// Ember's own lexer/parser/compiler/vm pipeline and
// github.com/chzyer/readline for history and line editing instead of a
// bare bufio.Scanner.
package repl

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"ember/internal/compiler"
	"ember/internal/lexer"
	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/parser"
	"ember/internal/vm"
)

// REPL drives one interactive session against a single VM. Each line is
// compiled and started as its own module, so names bound on one line
// are not visible on later lines.
type REPL struct {
	vm      *vm.VM
	rl      *readline.Instance
	out     io.Writer
	lineNum int
}

func New(v *vm.VM, out io.Writer) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ember> ",
		HistoryFile:     "/tmp/.ember_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &REPL{vm: v, rl: rl, out: out}, nil
}

func (r *REPL) Close() error { return r.rl.Close() }

// Run loops reading lines until EOF or an explicit "exit"/"quit".
func (r *REPL) Run() error {
	fmt.Fprintln(r.out, "ember repl — ctrl-d to exit")
	for {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		r.evalLine(line)
	}
}

func (r *REPL) evalLine(line string) {
	r.lineNum++
	modName := "<repl:" + strconv.Itoa(r.lineNum) + ">"

	toks := lexer.NewScannerWithFile(line, modName).ScanTokens()
	mod, err := parser.NewParser(toks).ParseModule(modName)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}

	cmp := compiler.New(r.vm.Heap())
	cd, err := cmp.CompileModule(mod)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	cd.ModuleName = modName

	result, err := r.vm.StartModule(cd)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	if result.Valid() && result != r.vm.None() {
		fmt.Fprintln(r.out, display(r.vm.Heap(), result))
	}
}

// display renders a heap value for interactive feedback. This is REPL
// presentation only — the core language has no built-in str()/print();
// a script-level stdlib would define those against the same heap.
func display(h object.Heap, id oid.ObjectId) string {
	switch v := h.Get(id).(type) {
	case *object.Integer:
		return strconv.FormatInt(v.Value, 10)
	case *object.Float:
		return strconv.FormatFloat(v.Value, 'g', -1, 64)
	case *object.String:
		return strconv.Quote(v.Value)
	case *object.Bool:
		return strconv.FormatBool(v.Value)
	case *object.None:
		return "none"
	case *object.List:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = display(h, item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *object.Range:
		return strconv.FormatInt(v.Lo, 10) + ".." + strconv.FormatInt(v.Hi, 10)
	default:
		return fmt.Sprintf("<%T>", v)
	}
}
