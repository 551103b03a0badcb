// Package parser builds an internal/ast tree from an internal/lexer
// token stream: match/consume/check recursive-descent scaffolding and a
// precedence-climbing expression parser, producing the
// class/exception/generator-capable ast internal/compiler consumes.
package parser

import (
	"ember/internal/ast"
	"ember/internal/lexer"
	"ember/internal/rt"
)

var precedence = map[lexer.TokenType]int{
	lexer.TokenOr:          1,
	lexer.TokenAnd:         2,
	lexer.TokenDoubleEqual: 3,
	lexer.TokenNotEqual:    3,
	lexer.TokenLT:          3,
	lexer.TokenGT:          3,
	lexer.TokenLE:          3,
	lexer.TokenGE:          3,
	lexer.TokenDotDot:      4,
	lexer.TokenPlus:        5,
	lexer.TokenMinus:       5,
	lexer.TokenStar:        6,
	lexer.TokenSlash:       6,
	lexer.TokenPercent:     6,
}

var assignOps = map[lexer.TokenType]string{
	lexer.TokenEqual:     "=",
	lexer.TokenPlusEq:    "+=",
	lexer.TokenMinusEq:   "-=",
	lexer.TokenStarEq:    "*=",
	lexer.TokenSlashEq:   "/=",
	lexer.TokenPercentEq: "%=",
}

type Parser struct {
	tokens  []lexer.Token
	current int
	file    string
}

func NewParser(tokens []lexer.Token) *Parser {
	file := ""
	if len(tokens) > 0 {
		file = tokens[0].File
	}
	return &Parser{tokens: tokens, file: file}
}

// ParseModule drives the parser to completion, recovering any internal
// panic raised by consume/primary on a syntax error into a returned
// *rt.Error rather than propagating it to the caller.
func (p *Parser) ParseModule(name string) (mod *ast.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*rt.Error); ok {
				err = re
				return
			}
			panic(r)
		}
	}()
	mod = &ast.Module{Name: name}
	ast.WithPos(mod, p.posAt(p.peek()))
	for !p.isAtEnd() {
		mod.Body = append(mod.Body, p.statement())
	}
	return mod, nil
}

func (p *Parser) posAt(tok lexer.Token) ast.Pos {
	return ast.NewPos(p.file, tok.Line, tok.Column)
}

// --- statements ---

func (p *Parser) statement() ast.Node {
	switch {
	case p.check(lexer.TokenFn):
		return p.functionDef(nil)
	case p.check(lexer.TokenAt):
		return p.decoratedFunction()
	case p.check(lexer.TokenClass):
		return p.classDef()
	case p.check(lexer.TokenStruct):
		return p.structDef()
	case p.check(lexer.TokenIf):
		return p.ifStmt()
	case p.check(lexer.TokenWhile):
		return p.whileStmt()
	case p.check(lexer.TokenFor):
		return p.forStmt()
	case p.check(lexer.TokenReturn):
		return p.returnStmt()
	case p.check(lexer.TokenImport):
		return p.importStmt()
	case p.check(lexer.TokenTry):
		return p.tryStmt()
	case p.check(lexer.TokenThrow):
		return p.throwStmt()
	case p.check(lexer.TokenBreak):
		tok := p.advance()
		n := &ast.Break{}
		ast.WithPos(n, p.posAt(tok))
		return n
	case p.check(lexer.TokenContinue):
		tok := p.advance()
		n := &ast.Continue{}
		ast.WithPos(n, p.posAt(tok))
		return n
	}
	return p.exprOrAssignStmt()
}

func (p *Parser) block() *ast.Block {
	tok := p.consume(lexer.TokenLBrace, "expect '{' to start block")
	b := &ast.Block{}
	ast.WithPos(b, p.posAt(tok))
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		b.Stmts = append(b.Stmts, p.statement())
	}
	p.consume(lexer.TokenRBrace, "expect '}' after block")
	return b
}

func (p *Parser) decoratedFunction() ast.Node {
	var decorators []string
	for p.match(lexer.TokenAt) {
		decorators = append(decorators, p.consume(lexer.TokenIdent, "expect decorator name").Lexeme)
	}
	p.consume(lexer.TokenFn, "expect 'fn' after decorator")
	return p.functionDef(decorators)
}

func (p *Parser) functionDef(decorators []string) ast.Node {
	tok := p.advance() // 'fn'
	name := p.consume(lexer.TokenIdent, "expect function name").Lexeme
	params := p.paramList()
	returnType := ""
	if p.match(lexer.TokenColon) {
		returnType = p.consume(lexer.TokenIdent, "expect return type after ':'").Lexeme
	}
	body := p.block()
	fn := &ast.FunctionDef{
		Name:        name,
		Params:      params,
		Body:        body,
		ReturnType:  returnType,
		Decorators:  decorators,
		IsGenerator: containsYield(body),
	}
	ast.WithPos(fn, p.posAt(tok))
	return fn
}

func (p *Parser) paramList() []ast.Param {
	p.consume(lexer.TokenLParen, "expect '(' after function name")
	var params []ast.Param
	if !p.check(lexer.TokenRParen) {
		params = append(params, p.param())
		for p.match(lexer.TokenComma) {
			params = append(params, p.param())
		}
	}
	p.consume(lexer.TokenRParen, "expect ')' after parameters")
	return params
}

func (p *Parser) param() ast.Param {
	name := p.consume(lexer.TokenIdent, "expect parameter name").Lexeme
	typ := ""
	if p.match(lexer.TokenColon) {
		typ = p.consume(lexer.TokenIdent, "expect parameter type after ':'").Lexeme
	}
	return ast.Param{Name: name, Type: typ}
}

func (p *Parser) classDef() ast.Node {
	tok := p.advance() // 'class'
	name := p.consume(lexer.TokenIdent, "expect class name").Lexeme
	parent := ""
	if p.match(lexer.TokenLParen) {
		parent = p.consume(lexer.TokenIdent, "expect parent class name").Lexeme
		p.consume(lexer.TokenRParen, "expect ')' after parent class name")
	}
	p.consume(lexer.TokenLBrace, "expect '{' to start class body")
	var body []ast.Node
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		if p.check(lexer.TokenAt) {
			body = append(body, p.decoratedFunction())
		} else {
			body = append(body, p.functionDef(nil))
		}
	}
	p.consume(lexer.TokenRBrace, "expect '}' after class body")
	cls := &ast.ClassDef{Name: name, Parent: parent, Body: body}
	ast.WithPos(cls, p.posAt(tok))
	return cls
}

func (p *Parser) structDef() ast.Node {
	tok := p.advance() // 'struct'
	name := p.consume(lexer.TokenIdent, "expect struct name").Lexeme
	p.consume(lexer.TokenLBrace, "expect '{' to start struct body")
	var fields []string
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		fields = append(fields, p.consume(lexer.TokenIdent, "expect field name").Lexeme)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.consume(lexer.TokenRBrace, "expect '}' after struct body")
	st := &ast.Struct{Name: name, Fields: fields}
	ast.WithPos(st, p.posAt(tok))
	return st
}

func (p *Parser) ifStmt() ast.Node {
	tok := p.advance() // 'if'
	test := p.expression()
	then := p.block()
	n := &ast.If{Test: test, Then: then}
	ast.WithPos(n, p.posAt(tok))
	if p.match(lexer.TokenElse) {
		if p.check(lexer.TokenIf) {
			n.Else = p.ifStmt()
		} else {
			n.Else = p.block()
		}
	}
	return n
}

func (p *Parser) whileStmt() ast.Node {
	tok := p.advance() // 'while'
	test := p.expression()
	body := p.block()
	n := &ast.While{Test: test, Body: body}
	ast.WithPos(n, p.posAt(tok))
	return n
}

func (p *Parser) forStmt() ast.Node {
	tok := p.advance() // 'for'
	varName := p.consume(lexer.TokenIdent, "expect loop variable name").Lexeme
	p.consume(lexer.TokenIn, "expect 'in' after loop variable")
	iterable := p.expression()
	body := p.block()
	n := &ast.For{Var: varName, Iterable: iterable, Body: body}
	ast.WithPos(n, p.posAt(tok))
	return n
}

func (p *Parser) returnStmt() ast.Node {
	tok := p.advance() // 'return'
	var value ast.Node
	if !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		value = p.expression()
	}
	n := &ast.Return{Value: value}
	ast.WithPos(n, p.posAt(tok))
	return n
}

func (p *Parser) importStmt() ast.Node {
	tok := p.advance() // 'import'
	dotted := []string{p.consume(lexer.TokenIdent, "expect module name").Lexeme}
	for p.match(lexer.TokenDot) {
		dotted = append(dotted, p.consume(lexer.TokenIdent, "expect module path segment").Lexeme)
	}
	alias := ""
	if p.match(lexer.TokenAs) {
		alias = p.consume(lexer.TokenIdent, "expect alias name").Lexeme
	}
	n := &ast.Import{Dotted: dotted, Alias: alias}
	ast.WithPos(n, p.posAt(tok))
	return n
}

func (p *Parser) tryStmt() ast.Node {
	tok := p.advance() // 'try'
	body := p.block()
	p.consume(lexer.TokenCatch, "expect 'catch' after try body")
	excName := ""
	if p.match(lexer.TokenLParen) {
		excName = p.consume(lexer.TokenIdent, "expect exception name").Lexeme
		p.consume(lexer.TokenRParen, "expect ')' after exception name")
	}
	catchBody := p.block()
	n := &ast.TryBlock{Body: body, ExcName: excName, CatchBody: catchBody}
	ast.WithPos(n, p.posAt(tok))
	return n
}

func (p *Parser) throwStmt() ast.Node {
	tok := p.advance() // 'throw'
	value := p.expression()
	n := &ast.Throw{Value: value}
	ast.WithPos(n, p.posAt(tok))
	return n
}

// exprOrAssignStmt parses an expression, then reinterprets it as an
// assignment target if an assignment operator follows, covering
// variable, attribute and subscript targets alike.
func (p *Parser) exprOrAssignStmt() ast.Node {
	tok := p.peek()
	expr := p.expression()
	if op, ok := assignOps[p.peek().Type]; ok {
		p.advance()
		value := p.expression()
		n := &ast.Assign{Target: expr, Op: op, Value: value}
		ast.WithPos(n, p.posAt(tok))
		return n
	}
	n := &ast.Expr{X: expr}
	ast.WithPos(n, p.posAt(tok))
	return n
}

// --- expressions ---

func (p *Parser) expression() ast.Node {
	return p.parseBinary(1)
}

func (p *Parser) parseBinary(minPrec int) ast.Node {
	left := p.parseUnary()
	for {
		tok := p.peek()
		prec, ok := precedence[tok.Type]
		if !ok || prec < minPrec {
			break
		}
		p.advance()
		right := p.parseBinary(prec + 1)
		left = combine(tok, left, right)
	}
	return left
}

func combine(tok lexer.Token, left, right ast.Node) ast.Node {
	switch tok.Type {
	case lexer.TokenAnd:
		n := &ast.Logical{Op: "and", Left: left, Right: right}
		ast.WithPos(n, ast.NewPos(tok.File, tok.Line, tok.Column))
		return n
	case lexer.TokenOr:
		n := &ast.Logical{Op: "or", Left: left, Right: right}
		ast.WithPos(n, ast.NewPos(tok.File, tok.Line, tok.Column))
		return n
	case lexer.TokenDotDot:
		n := &ast.RangeExpr{Lo: left, Hi: right}
		ast.WithPos(n, ast.NewPos(tok.File, tok.Line, tok.Column))
		return n
	default:
		n := &ast.Binary{Op: string(tok.Type), Left: left, Right: right}
		ast.WithPos(n, ast.NewPos(tok.File, tok.Line, tok.Column))
		return n
	}
}

func (p *Parser) parseUnary() ast.Node {
	if p.check(lexer.TokenBang) || p.check(lexer.TokenNot) || p.check(lexer.TokenMinus) {
		tok := p.advance()
		op := "-"
		if tok.Type != lexer.TokenMinus {
			op = "!"
			if tok.Type == lexer.TokenNot {
				op = "not"
			}
		}
		x := p.parseUnary()
		n := &ast.Unary{Op: op, X: x}
		ast.WithPos(n, p.posAt(tok))
		return n
	}
	return p.parseCallOrAwaitOrYield()
}

func (p *Parser) parseCallOrAwaitOrYield() ast.Node {
	if p.check(lexer.TokenAwait) {
		tok := p.advance()
		value := p.parseUnary()
		n := &ast.Await{Value: value}
		ast.WithPos(n, p.posAt(tok))
		return n
	}
	if p.check(lexer.TokenYield) {
		tok := p.advance()
		var value ast.Node
		if !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenSemicolon) && !p.isAtEnd() {
			value = p.expression()
		}
		n := &ast.Yield{Value: value}
		ast.WithPos(n, p.posAt(tok))
		return n
	}
	return p.parseCall()
}

func (p *Parser) parseCall() ast.Node {
	expr := p.primary()
	for {
		tok := p.peek()
		switch {
		case p.match(lexer.TokenLParen):
			expr = p.finishCall(expr, tok)
		case p.match(lexer.TokenLBracket):
			key := p.expression()
			p.consume(lexer.TokenRBracket, "expect ']' after index")
			n := &ast.Index{Object: expr, Key: key}
			ast.WithPos(n, p.posAt(tok))
			expr = n
		case p.match(lexer.TokenDot):
			name := p.consume(lexer.TokenIdent, "expect attribute name after '.'").Lexeme
			n := &ast.Dot{Object: expr, Name: name}
			ast.WithPos(n, p.posAt(tok))
			expr = n
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Node, tok lexer.Token) ast.Node {
	var args []ast.Node
	if !p.check(lexer.TokenRParen) {
		args = append(args, p.expression())
		for p.match(lexer.TokenComma) {
			args = append(args, p.expression())
		}
	}
	p.consume(lexer.TokenRParen, "expect ')' after arguments")
	n := &ast.Call{Callee: callee, Args: args}
	ast.WithPos(n, p.posAt(tok))
	return n
}

func (p *Parser) primary() ast.Node {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenInt:
		n := &ast.Constant{Value: parseInt(tok.Lexeme)}
		ast.WithPos(n, p.posAt(tok))
		return n
	case lexer.TokenFloat:
		n := &ast.Constant{Value: parseFloat(tok.Lexeme)}
		ast.WithPos(n, p.posAt(tok))
		return n
	case lexer.TokenString:
		n := &ast.Constant{Value: tok.Lexeme}
		ast.WithPos(n, p.posAt(tok))
		return n
	case lexer.TokenTrue:
		n := &ast.Constant{Value: true}
		ast.WithPos(n, p.posAt(tok))
		return n
	case lexer.TokenFalse:
		n := &ast.Constant{Value: false}
		ast.WithPos(n, p.posAt(tok))
		return n
	case lexer.TokenNone:
		n := &ast.Constant{Value: nil}
		ast.WithPos(n, p.posAt(tok))
		return n
	case lexer.TokenIdent:
		n := &ast.Variable{Name: tok.Lexeme}
		ast.WithPos(n, p.posAt(tok))
		return n
	case lexer.TokenLBracket:
		return p.listLiteral(tok)
	case lexer.TokenLParen:
		expr := p.expression()
		p.consume(lexer.TokenRParen, "expect ')' after expression")
		return expr
	case lexer.TokenFn:
		p.current--
		return p.functionDef(nil)
	default:
		panic(rt.New(rt.KindSyntax, "unexpected token "+string(tok.Type)+" '"+tok.Lexeme+"'").At(tok.File, tok.Line, tok.Column))
	}
}

func (p *Parser) listLiteral(tok lexer.Token) ast.Node {
	var items []ast.Node
	if !p.check(lexer.TokenRBracket) {
		items = append(items, p.expression())
		for p.match(lexer.TokenComma) {
			items = append(items, p.expression())
		}
	}
	p.consume(lexer.TokenRBracket, "expect ']' after list elements")
	n := &ast.List{Items: items}
	ast.WithPos(n, p.posAt(tok))
	return n
}

// --- token helpers ---

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	cur := p.peek()
	panic(rt.Newf(rt.KindSyntax, "%s (got %q)", msg, cur.Lexeme).At(cur.File, cur.Line, cur.Column))
}

func (p *Parser) check(t lexer.TokenType) bool {
	return !p.isAtEnd() && p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}
