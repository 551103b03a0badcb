package compiler

import "ember/internal/ast"

// ResolveCaptures rewrites mod's FunctionDef nodes into MakeClosure nodes
// wherever a function body references a name bound by an enclosing
// function rather than by itself or the module's top level. It runs
// bottom-up: a nested function is resolved before the function that
// contains it, so an outer function's own free-variable set already
// accounts for anything its nested closures need threaded through it.
//
// Grounded on hoisting_compiler.go's two-pass split between a name-scan
// pass and the code-generating pass that trusts its results.
func ResolveCaptures(mod *ast.Module) {
	mod.Body = rewriteStmts(mod.Body, nil)
}

// scope is a stack of the bound-name sets for every enclosing function,
// innermost last. The module's top level is never pushed: names free at
// module scope are globals, not captures.
type scope []map[string]bool

func rewriteStmts(stmts []ast.Node, sc scope) []ast.Node {
	out := make([]ast.Node, len(stmts))
	for i, s := range stmts {
		out[i] = rewriteStmt(s, sc)
	}
	return out
}

func rewriteStmt(n ast.Node, sc scope) ast.Node {
	switch v := n.(type) {
	case *ast.FunctionDef:
		return rewriteFunctionDef(v, sc)
	case *ast.ClassDef:
		v.Body = rewriteStmts(v.Body, sc)
		return v
	case *ast.Struct:
		return v
	case *ast.If:
		v.Test = rewriteExpr(v.Test, sc)
		v.Then.Stmts = rewriteStmts(v.Then.Stmts, sc)
		if v.Else != nil {
			v.Else = rewriteStmt(v.Else, sc)
		}
		return v
	case *ast.While:
		v.Test = rewriteExpr(v.Test, sc)
		v.Body.Stmts = rewriteStmts(v.Body.Stmts, sc)
		return v
	case *ast.For:
		v.Iterable = rewriteExpr(v.Iterable, sc)
		v.Body.Stmts = rewriteStmts(v.Body.Stmts, sc)
		return v
	case *ast.Block:
		v.Stmts = rewriteStmts(v.Stmts, sc)
		return v
	case *ast.Return:
		if v.Value != nil {
			v.Value = rewriteExpr(v.Value, sc)
		}
		return v
	case *ast.Assign:
		v.Target = rewriteExpr(v.Target, sc)
		v.Value = rewriteExpr(v.Value, sc)
		return v
	case *ast.Expr:
		v.X = rewriteExpr(v.X, sc)
		return v
	case *ast.TryBlock:
		v.Body.Stmts = rewriteStmts(v.Body.Stmts, sc)
		if v.CatchBody != nil {
			v.CatchBody.Stmts = rewriteStmts(v.CatchBody.Stmts, sc)
		}
		return v
	case *ast.Throw:
		v.Value = rewriteExpr(v.Value, sc)
		return v
	case *ast.Import, *ast.Break, *ast.Continue:
		return v
	default:
		return n
	}
}

func rewriteExpr(n ast.Node, sc scope) ast.Node {
	switch v := n.(type) {
	case *ast.FunctionDef:
		return rewriteFunctionDef(v, sc)
	case *ast.Binary:
		v.Left = rewriteExpr(v.Left, sc)
		v.Right = rewriteExpr(v.Right, sc)
		return v
	case *ast.Logical:
		v.Left = rewriteExpr(v.Left, sc)
		v.Right = rewriteExpr(v.Right, sc)
		return v
	case *ast.Unary:
		v.X = rewriteExpr(v.X, sc)
		return v
	case *ast.Call:
		v.Callee = rewriteExpr(v.Callee, sc)
		for i := range v.Args {
			v.Args[i] = rewriteExpr(v.Args[i], sc)
		}
		return v
	case *ast.Dot:
		v.Object = rewriteExpr(v.Object, sc)
		return v
	case *ast.Index:
		v.Object = rewriteExpr(v.Object, sc)
		v.Key = rewriteExpr(v.Key, sc)
		return v
	case *ast.List:
		for i := range v.Items {
			v.Items[i] = rewriteExpr(v.Items[i], sc)
		}
		return v
	case *ast.RangeExpr:
		v.Lo = rewriteExpr(v.Lo, sc)
		v.Hi = rewriteExpr(v.Hi, sc)
		return v
	case *ast.Yield:
		v.Value = rewriteExpr(v.Value, sc)
		return v
	case *ast.Await:
		v.Value = rewriteExpr(v.Value, sc)
		return v
	default:
		return n
	}
}

func rewriteFunctionDef(fd *ast.FunctionDef, sc scope) ast.Node {
	bound := map[string]bool{}
	for _, p := range fd.Params {
		bound[p.Name] = true
	}
	collectBound(fd.Body.Stmts, bound)

	inner := append(append(scope{}, sc...), bound)
	fd.Body.Stmts = rewriteStmts(fd.Body.Stmts, inner)

	free := map[string]bool{}
	collectFree(fd.Body.Stmts, bound, free)
	if len(free) == 0 || len(sc) == 0 {
		return fd
	}

	captures := make([]string, 0, len(free))
	for name := range free {
		if boundByAny(sc, name) {
			captures = append(captures, name)
		}
	}
	if len(captures) == 0 {
		return fd
	}
	sortStrings(captures)
	return &ast.MakeClosure{Fn: fd, Captures: captures}
}

func boundByAny(sc scope, name string) bool {
	for i := len(sc) - 1; i >= 0; i-- {
		if sc[i][name] {
			return true
		}
	}
	return false
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// collectBound gathers every name this function body binds directly:
// assignment targets and for-loop variables, not descending into nested
// function bodies (those introduce their own scope).
func collectBound(stmts []ast.Node, bound map[string]bool) {
	for _, s := range stmts {
		switch v := s.(type) {
		case *ast.Assign:
			if va, ok := v.Target.(*ast.Variable); ok {
				bound[va.Name] = true
			}
		case *ast.For:
			bound[v.Var] = true
			collectBound(v.Body.Stmts, bound)
		case *ast.If:
			collectBound(v.Then.Stmts, bound)
			if elseBlk, ok := v.Else.(*ast.Block); ok {
				collectBound(elseBlk.Stmts, bound)
			} else if elseIf, ok := v.Else.(*ast.If); ok {
				collectBound([]ast.Node{elseIf}, bound)
			}
		case *ast.While:
			collectBound(v.Body.Stmts, bound)
		case *ast.TryBlock:
			collectBound(v.Body.Stmts, bound)
			if v.CatchBody != nil {
				if v.ExcName != "" {
					bound[v.ExcName] = true
				}
				collectBound(v.CatchBody.Stmts, bound)
			}
		case *ast.Block:
			collectBound(v.Stmts, bound)
		case *ast.Import:
			name := v.Alias
			if name == "" && len(v.Dotted) > 0 {
				name = v.Dotted[len(v.Dotted)-1]
			}
			bound[name] = true
		}
	}
}

// collectFree gathers every Variable name referenced in stmts that isn't
// in bound, plus every capture name required by an already-resolved
// nested MakeClosure that isn't in bound either - so a middle function
// threads through whatever its own nested closures need from above it.
func collectFree(stmts []ast.Node, bound, free map[string]bool) {
	var visitStmt func(n ast.Node)
	var visitExpr func(n ast.Node)

	visitExpr = func(n ast.Node) {
		switch v := n.(type) {
		case nil:
		case *ast.Variable:
			if !bound[v.Name] {
				free[v.Name] = true
			}
		case *ast.MakeClosure:
			for _, name := range v.Captures {
				if !bound[name] {
					free[name] = true
				}
			}
		case *ast.FunctionDef:
			// Unresolved nested def (shouldn't occur post-rewrite, but
			// stay conservative rather than panic).
		case *ast.Binary:
			visitExpr(v.Left)
			visitExpr(v.Right)
		case *ast.Logical:
			visitExpr(v.Left)
			visitExpr(v.Right)
		case *ast.Unary:
			visitExpr(v.X)
		case *ast.Call:
			visitExpr(v.Callee)
			for _, a := range v.Args {
				visitExpr(a)
			}
		case *ast.Dot:
			visitExpr(v.Object)
		case *ast.Index:
			visitExpr(v.Object)
			visitExpr(v.Key)
		case *ast.List:
			for _, it := range v.Items {
				visitExpr(it)
			}
		case *ast.RangeExpr:
			visitExpr(v.Lo)
			visitExpr(v.Hi)
		case *ast.Yield:
			visitExpr(v.Value)
		case *ast.Await:
			visitExpr(v.Value)
		}
	}

	visitStmt = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.MakeClosure, *ast.FunctionDef:
			visitExpr(n)
		case *ast.ClassDef:
			for _, m := range v.Body {
				visitStmt(m)
			}
		case *ast.If:
			visitExpr(v.Test)
			for _, s := range v.Then.Stmts {
				visitStmt(s)
			}
			if v.Else != nil {
				visitStmt(v.Else)
			}
		case *ast.While:
			visitExpr(v.Test)
			for _, s := range v.Body.Stmts {
				visitStmt(s)
			}
		case *ast.For:
			visitExpr(v.Iterable)
			for _, s := range v.Body.Stmts {
				visitStmt(s)
			}
		case *ast.Block:
			for _, s := range v.Stmts {
				visitStmt(s)
			}
		case *ast.Return:
			visitExpr(v.Value)
		case *ast.Assign:
			if dot, ok := v.Target.(*ast.Dot); ok {
				visitExpr(dot.Object)
			} else if idx, ok := v.Target.(*ast.Index); ok {
				visitExpr(idx.Object)
				visitExpr(idx.Key)
			}
			visitExpr(v.Value)
		case *ast.Expr:
			visitExpr(v.X)
		case *ast.TryBlock:
			for _, s := range v.Body.Stmts {
				visitStmt(s)
			}
			if v.CatchBody != nil {
				for _, s := range v.CatchBody.Stmts {
					visitStmt(s)
				}
			}
		case *ast.Throw:
			visitExpr(v.Value)
		}
	}

	for _, s := range stmts {
		visitStmt(s)
	}
}
