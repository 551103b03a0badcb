package parser

import (
	"strconv"

	"ember/internal/ast"
)

// containsYield scans a function body for a Yield expression to set
// ast.FunctionDef.IsGenerator, so a caller never has to mark a function
// "gen" explicitly — generator-ness is a property of the body.
func containsYield(b *ast.Block) bool {
	for _, stmt := range b.Stmts {
		if stmtHasYield(stmt) {
			return true
		}
	}
	return false
}

func stmtHasYield(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.Expr:
		return exprHasYield(v.X)
	case *ast.Assign:
		return exprHasYield(v.Value)
	case *ast.Return:
		return v.Value != nil && exprHasYield(v.Value)
	case *ast.If:
		if exprHasYield(v.Test) || containsYield(v.Then) {
			return true
		}
		if v.Else == nil {
			return false
		}
		return stmtHasYield(v.Else)
	case *ast.While:
		return exprHasYield(v.Test) || containsYield(v.Body)
	case *ast.For:
		return exprHasYield(v.Iterable) || containsYield(v.Body)
	case *ast.TryBlock:
		return containsYield(v.Body) || containsYield(v.CatchBody)
	case *ast.Throw:
		return exprHasYield(v.Value)
	case *ast.Block:
		return containsYield(v)
	default:
		return false
	}
}

func exprHasYield(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.Yield:
		return true
	case *ast.Binary:
		return exprHasYield(v.Left) || exprHasYield(v.Right)
	case *ast.Logical:
		return exprHasYield(v.Left) || exprHasYield(v.Right)
	case *ast.Unary:
		return exprHasYield(v.X)
	case *ast.Call:
		if exprHasYield(v.Callee) {
			return true
		}
		for _, a := range v.Args {
			if exprHasYield(a) {
				return true
			}
		}
		return false
	case *ast.Dot:
		return exprHasYield(v.Object)
	case *ast.Index:
		return exprHasYield(v.Object) || exprHasYield(v.Key)
	case *ast.List:
		for _, item := range v.Items {
			if exprHasYield(item) {
				return true
			}
		}
		return false
	case *ast.RangeExpr:
		return exprHasYield(v.Lo) || exprHasYield(v.Hi)
	case *ast.Await:
		return exprHasYield(v.Value)
	default:
		return false
	}
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
