package parser

import (
	"strings"

	"github.com/vesper-lang/vesper/ast"
	"github.com/vesper-lang/vesper/lexer"
)

// ParseProgram consumes every statement up to TEOF.
func (p *Parser) ParseProgram() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.at(lexer.TEOF) {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// consumeStmtTerminator accepts `;` or an upcoming `?>`/EOF (the raw
// splitter already stripped close tags, so in practice only `;`or EOF
// is seen here; EOF is tolerated so the last statement of a chunk need
// not carry a trailing semicolon).
func (p *Parser) consumeStmtTerminator() {
	if p.at(lexer.TSemicolon) {
		p.advance()
		return
	}
	if p.at(lexer.TEOF) {
		return
	}
	p.errorf("expected ';', got %q", p.cur().Literal)
}

func (p *Parser) parseBlock() []ast.Stmt {
	p.expect(lexer.TLBrace)
	var stmts []ast.Stmt
	for !p.at(lexer.TRBrace) && !p.at(lexer.TEOF) {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.expect(lexer.TRBrace)
	return stmts
}

// parseBodyOrAlt parses either a brace block or the alternate
// `: stmt* endKeyword` colon syntax, stopping before `endKeyword` without
// consuming it (callers that need to continue past elseif/else consume
// the colon form themselves).
func (p *Parser) parseBodyOrAlt(stopAt ...lexer.TokenType) []ast.Stmt {
	if p.at(lexer.TLBrace) {
		return p.parseBlock()
	}
	if p.at(lexer.TColon) {
		p.advance()
		var stmts []ast.Stmt
		for !p.atAnyOf(stopAt...) && !p.at(lexer.TEOF) {
			if s := p.parseStatement(); s != nil {
				stmts = append(stmts, s)
			}
		}
		return stmts
	}
	// single-statement body: `if (...) echo "x";`
	if s := p.parseStatement(); s != nil {
		return []ast.Stmt{s}
	}
	return nil
}

func (p *Parser) atAnyOf(tts ...lexer.TokenType) bool {
	for _, tt := range tts {
		if p.at(tt) {
			return true
		}
	}
	return false
}

func (p *Parser) parseStatement() ast.Stmt {
	t := p.cur()
	switch t.Type {
	case lexer.TSemicolon:
		p.advance()
		return nil
	case lexer.TLBrace:
		startPos := pos(t)
		return &ast.BlockStmt{Base: ast.At(startPos), Stmts: p.parseBlock()}
	case lexer.TIf:
		return p.parseIf()
	case lexer.TWhile:
		return p.parseWhile()
	case lexer.TDo:
		return p.parseDoWhile()
	case lexer.TFor:
		return p.parseFor()
	case lexer.TForeach:
		return p.parseForeach()
	case lexer.TSwitch:
		return p.parseSwitch()
	case lexer.TBreak:
		return p.parseBreakContinue(true)
	case lexer.TContinue:
		return p.parseBreakContinue(false)
	case lexer.TReturn:
		return p.parseReturn()
	case lexer.TThrow:
		return p.parseThrow()
	case lexer.TTry:
		return p.parseTry()
	case lexer.TGlobal:
		return p.parseGlobal()
	case lexer.TUnset:
		return p.parseUnset()
	case lexer.TStatic:
		if p.peekN(1).Type == lexer.TVariable {
			return p.parseStaticVar()
		}
	case lexer.TConst:
		return p.parseConstStmt()
	case lexer.TFunction:
		if p.atFunctionDecl() {
			return p.parseFunctionDecl()
		}
	case lexer.TAbstract, lexer.TFinal, lexer.TClass:
		return p.parseClassDecl()
	case lexer.TInterface:
		return p.parseInterfaceDecl()
	case lexer.TGoto:
		return p.parseGoto()
	case lexer.TEcho:
		return p.parseEcho()
	case lexer.TNamespace:
		return p.parseNamespace()
	case lexer.TUse:
		return p.parseUseStmt()
	case lexer.TDeclare:
		return p.parseDeclare()
	case lexer.TString:
		if p.peekN(1).Type == lexer.TColon {
			startPos := pos(t)
			name := p.advance().Literal
			p.advance()
			return &ast.LabelStmt{Base: ast.At(startPos), Name: name}
		}
	}
	startPos := pos(t)
	expr := p.ParseExpr()
	p.consumeStmtTerminator()
	return &ast.ExprStmt{Base: ast.At(startPos), X: expr}
}

func (p *Parser) atFunctionDecl() bool {
	n := p.peekN(1)
	if n.Type == lexer.TLParen {
		return false
	}
	if n.Type == lexer.TOperator && n.Literal == "&" {
		return p.peekN(2).Type != lexer.TLParen
	}
	return true
}

func (p *Parser) parseIf() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	p.expect(lexer.TLParen)
	cond := p.ParseExpr()
	p.expect(lexer.TRParen)
	alt := p.at(lexer.TColon)
	then := p.parseBodyOrAlt(lexer.TElseif, lexer.TElse, lexer.TEndif)
	var elseifs []ast.ElseIfClause
	var els []ast.Stmt
	for p.at(lexer.TElseif) {
		p.advance()
		p.expect(lexer.TLParen)
		c := p.ParseExpr()
		p.expect(lexer.TRParen)
		b := p.parseBodyOrAlt(lexer.TElseif, lexer.TElse, lexer.TEndif)
		elseifs = append(elseifs, ast.ElseIfClause{Cond: c, Body: b})
	}
	if p.at(lexer.TElse) {
		p.advance()
		if p.at(lexer.TIf) {
			// `else if (...)` written as two words: treat like elseif.
			p.advance()
			p.expect(lexer.TLParen)
			c := p.ParseExpr()
			p.expect(lexer.TRParen)
			b := p.parseBodyOrAlt(lexer.TElseif, lexer.TElse, lexer.TEndif)
			elseifs = append(elseifs, ast.ElseIfClause{Cond: c, Body: b})
		} else {
			els = p.parseBodyOrAlt(lexer.TEndif)
		}
	}
	if alt {
		p.expect(lexer.TEndif)
		p.consumeStmtTerminator()
	}
	return &ast.IfStmt{Base: ast.At(startPos), Cond: cond, Then: then, ElseIfs: elseifs, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	p.expect(lexer.TLParen)
	cond := p.ParseExpr()
	p.expect(lexer.TRParen)
	alt := p.at(lexer.TColon)
	body := p.parseBodyOrAlt(lexer.TEndwhile)
	if alt {
		p.expect(lexer.TEndwhile)
		p.consumeStmtTerminator()
	}
	return &ast.WhileStmt{Base: ast.At(startPos), Cond: cond, Body: body}
}

func (p *Parser) parseDoWhile() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	body := p.parseBodyOrAlt()
	p.expect(lexer.TWhile)
	p.expect(lexer.TLParen)
	cond := p.ParseExpr()
	p.expect(lexer.TRParen)
	p.consumeStmtTerminator()
	return &ast.DoWhileStmt{Base: ast.At(startPos), Body: body, Cond: cond}
}

func (p *Parser) parseFor() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	p.expect(lexer.TLParen)
	var init, cond, post []ast.Expr
	if !p.at(lexer.TSemicolon) {
		init = p.ParseExprList()
	}
	p.expect(lexer.TSemicolon)
	if !p.at(lexer.TSemicolon) {
		cond = p.ParseExprList()
	}
	p.expect(lexer.TSemicolon)
	if !p.at(lexer.TRParen) {
		post = p.ParseExprList()
	}
	p.expect(lexer.TRParen)
	alt := p.at(lexer.TColon)
	body := p.parseBodyOrAlt(lexer.TEndfor)
	if alt {
		p.expect(lexer.TEndfor)
		p.consumeStmtTerminator()
	}
	return &ast.ForStmt{Base: ast.At(startPos), Init: init, Cond: cond, Post: post, Body: body}
}

func (p *Parser) parseForeach() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	p.expect(lexer.TLParen)
	subject := p.ParseExpr()
	p.expect(lexer.TAs)
	byRef := false
	if p.atOp("&") {
		p.advance()
		byRef = true
	}
	first := p.ParseExpr()
	var key, value ast.Expr
	if p.at(lexer.TDoubleArrow) {
		p.advance()
		if p.atOp("&") {
			p.advance()
			byRef = true
		}
		value = p.ParseExpr()
		key = first
	} else {
		value = first
	}
	p.expect(lexer.TRParen)
	alt := p.at(lexer.TColon)
	body := p.parseBodyOrAlt(lexer.TEndforeach)
	if alt {
		p.expect(lexer.TEndforeach)
		p.consumeStmtTerminator()
	}
	return &ast.ForeachStmt{Base: ast.At(startPos), Subject: subject, KeyVar: key, ValueVar: value, ByRef: byRef, Body: body}
}

func (p *Parser) parseSwitch() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	p.expect(lexer.TLParen)
	sel := p.ParseExpr()
	p.expect(lexer.TRParen)
	alt := false
	if p.at(lexer.TColon) {
		alt = true
		p.advance()
	} else {
		p.expect(lexer.TLBrace)
	}
	var cases []ast.SwitchCase
	for p.at(lexer.TCase) || p.at(lexer.TDefault) {
		var c ast.SwitchCase
		if p.at(lexer.TCase) {
			p.advance()
			c.Expr = p.ParseExpr()
		} else {
			p.advance()
		}
		if p.at(lexer.TColon) {
			p.advance()
		} else {
			p.expect(lexer.TSemicolon)
		}
		for !p.at(lexer.TCase) && !p.at(lexer.TDefault) && !p.at(lexer.TRBrace) && !p.at(lexer.TEndswitch) && !p.at(lexer.TEOF) {
			if s := p.parseStatement(); s != nil {
				c.Body = append(c.Body, s)
			}
		}
		cases = append(cases, c)
	}
	if alt {
		p.expect(lexer.TEndswitch)
		p.consumeStmtTerminator()
	} else {
		p.expect(lexer.TRBrace)
	}
	return &ast.SwitchStmt{Base: ast.At(startPos), Selector: sel, Cases: cases}
}

func (p *Parser) parseBreakContinue(isBreak bool) ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	level := 1
	if p.at(lexer.TLNumber) {
		lit := p.advance().Literal
		if n := parseIntLiteral(startPos, lit); n != nil {
			level = int(n.IntVal)
		}
	}
	p.consumeStmtTerminator()
	if isBreak {
		return &ast.BreakStmt{Base: ast.At(startPos), Level: level}
	}
	return &ast.ContinueStmt{Base: ast.At(startPos), Level: level}
}

func (p *Parser) parseReturn() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	var val ast.Expr
	if !p.at(lexer.TSemicolon) && !p.at(lexer.TEOF) {
		val = p.ParseExpr()
	}
	p.consumeStmtTerminator()
	return &ast.ReturnStmt{Base: ast.At(startPos), Value: val}
}

func (p *Parser) parseThrow() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	val := p.ParseExpr()
	p.consumeStmtTerminator()
	return &ast.ThrowStmt{Base: ast.At(startPos), Value: val}
}

func (p *Parser) parseTry() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	body := p.parseBlock()
	var catches []ast.CatchClause
	for p.at(lexer.TCatch) {
		p.advance()
		p.expect(lexer.TLParen)
		var names []string
		names = append(names, p.advance().Literal)
		for p.atOp("|") {
			p.advance()
			names = append(names, p.advance().Literal)
		}
		varName := ""
		if p.at(lexer.TVariable) {
			varName = p.advance().Literal
		}
		p.expect(lexer.TRParen)
		cbody := p.parseBlock()
		catches = append(catches, ast.CatchClause{ClassNames: names, VarName: varName, Body: cbody})
	}
	var finally []ast.Stmt
	if p.at(lexer.TFinally) {
		p.advance()
		finally = p.parseBlock()
	}
	return &ast.TryStmt{Base: ast.At(startPos), Body: body, Catches: catches, Finally: finally}
}

func (p *Parser) parseGlobal() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	var names []string
	names = append(names, p.expect(lexer.TVariable).Literal)
	for p.at(lexer.TComma) {
		p.advance()
		names = append(names, p.expect(lexer.TVariable).Literal)
	}
	p.consumeStmtTerminator()
	return &ast.GlobalStmt{Base: ast.At(startPos), Names: names}
}

func (p *Parser) parseUnset() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	p.expect(lexer.TLParen)
	vars := []ast.Expr{p.ParseExpr()}
	for p.at(lexer.TComma) {
		p.advance()
		vars = append(vars, p.ParseExpr())
	}
	p.expect(lexer.TRParen)
	p.consumeStmtTerminator()
	return &ast.UnsetStmt{Base: ast.At(startPos), Vars: vars}
}

func (p *Parser) parseStaticVar() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	var decls []ast.StaticVarDecl
	for {
		name := p.expect(lexer.TVariable).Literal
		var init ast.Expr
		if p.at(lexer.TAssign) {
			p.advance()
			init = p.ParseExpr()
		}
		decls = append(decls, ast.StaticVarDecl{Name: name, Init: init})
		if p.at(lexer.TComma) {
			p.advance()
			continue
		}
		break
	}
	p.consumeStmtTerminator()
	return &ast.StaticVarStmt{Base: ast.At(startPos), Vars: decls}
}

func (p *Parser) parseConstStmt() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	decls := p.parseConstDecls()
	p.consumeStmtTerminator()
	return &ast.ConstStmt{Base: ast.At(startPos), Decls: decls}
}

func (p *Parser) parseConstDecls() []ast.ConstDecl {
	var decls []ast.ConstDecl
	for {
		name := p.advance().Literal
		p.expect(lexer.TAssign)
		val := p.ParseExpr()
		decls = append(decls, ast.ConstDecl{Name: name, Value: val})
		if p.at(lexer.TComma) {
			p.advance()
			continue
		}
		break
	}
	return decls
}

func (p *Parser) parseGoto() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	label := p.advance().Literal
	p.consumeStmtTerminator()
	return &ast.GotoStmt{Base: ast.At(startPos), Label: label}
}

func (p *Parser) parseEcho() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	vals := p.ParseExprList()
	p.consumeStmtTerminator()
	return &ast.EchoStmt{Base: ast.At(startPos), Values: vals}
}

func (p *Parser) parseNamespace() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	name := ""
	for p.at(lexer.TString) {
		name += p.advance().Literal
	}
	if p.at(lexer.TLBrace) {
		p.parseBlock() // namespace-block form: body has no symbol-resolution effect
	} else {
		p.consumeStmtTerminator()
	}
	return &ast.NamespaceStmt{Base: ast.At(startPos), Name: name}
}

func (p *Parser) parseUseStmt() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	name := p.advance().Literal
	alias := ""
	if p.at(lexer.TString) && strings.EqualFold(p.cur().Literal, "as") {
		p.advance()
		alias = p.advance().Literal
	}
	p.consumeStmtTerminator()
	return &ast.UseStmt{Base: ast.At(startPos), Name: name, Alias: alias}
}

func (p *Parser) parseDeclare() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	p.expect(lexer.TLParen)
	directive := p.advance().Literal
	p.expect(lexer.TAssign)
	val := p.ParseExpr()
	p.expect(lexer.TRParen)
	if p.at(lexer.TLBrace) {
		p.parseBlock()
	} else {
		p.consumeStmtTerminator()
	}
	return &ast.DeclareStmt{Base: ast.At(startPos), Directive: directive, Value: val}
}

func (p *Parser) parseFunctionDecl() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	byRefReturn := false
	if p.atOp("&") {
		p.advance()
		byRefReturn = true
	}
	name := p.advance().Literal
	params := p.parseParamList()
	retType := p.parseOptionalReturnType()
	body := p.parseBlock()
	return &ast.FunctionDecl{Base: ast.At(startPos), Name: name, Params: params, ByRefReturn: byRefReturn, ReturnType: retType, Body: body}
}

func (p *Parser) parseClassDecl() ast.Stmt {
	startPos := pos(p.cur())
	abstract, final := false, false
	for p.at(lexer.TAbstract) || p.at(lexer.TFinal) {
		if p.at(lexer.TAbstract) {
			abstract = true
		} else {
			final = true
		}
		p.advance()
	}
	p.expect(lexer.TClass)
	name := p.advance().Literal
	baseName := ""
	if p.at(lexer.TExtends) {
		p.advance()
		baseName = p.advance().Literal
	}
	var interfaces []string
	if p.at(lexer.TImplements) {
		p.advance()
		interfaces = append(interfaces, p.advance().Literal)
		for p.at(lexer.TComma) {
			p.advance()
			interfaces = append(interfaces, p.advance().Literal)
		}
	}
	props, consts, methods := p.parseClassBody()
	return &ast.ClassDecl{
		Base: ast.At(startPos), Name: name, BaseName: baseName, Interfaces: interfaces,
		Abstract: abstract, Final: final,
		Properties: props, Constants: consts, Methods: methods,
	}
}

func (p *Parser) parseInterfaceDecl() ast.Stmt {
	startPos := pos(p.cur())
	p.advance()
	name := p.advance().Literal
	var extends []string
	if p.at(lexer.TExtends) {
		p.advance()
		extends = append(extends, p.advance().Literal)
		for p.at(lexer.TComma) {
			p.advance()
			extends = append(extends, p.advance().Literal)
		}
	}
	props, consts, methods := p.parseClassBody()
	return &ast.ClassDecl{
		Base: ast.At(startPos), Name: name, Interfaces: extends, IsInterface: true,
		Properties: props, Constants: consts, Methods: methods,
	}
}

// parsePropertyList parses a comma-separated `$name [= default]` list
// under an already-determined visibility/static pair, shared by both
// untyped (`public $x`) and typed (`protected string $name`) property
// declarations so a declared type never drops its modifiers.
func (p *Parser) parsePropertyList(visibility string, static bool) []ast.PropertyDecl {
	var props []ast.PropertyDecl
	for {
		pname := p.advance().Literal
		var def ast.Expr
		if p.at(lexer.TAssign) {
			p.advance()
			def = p.ParseExpr()
		}
		props = append(props, ast.PropertyDecl{Name: pname, Visibility: visibility, Static: static, Default: def})
		if p.at(lexer.TComma) {
			p.advance()
			continue
		}
		break
	}
	return props
}

func (p *Parser) parseClassBody() ([]ast.PropertyDecl, []ast.ConstDecl, []ast.MethodDecl) {
	p.expect(lexer.TLBrace)
	var props []ast.PropertyDecl
	var consts []ast.ConstDecl
	var methods []ast.MethodDecl
	for !p.at(lexer.TRBrace) && !p.at(lexer.TEOF) {
		visibility := "public"
		static, abstract, final := false, false, false
		for {
			switch p.cur().Type {
			case lexer.TPublic:
				visibility = "public"
			case lexer.TProtected:
				visibility = "protected"
			case lexer.TPrivate:
				visibility = "private"
			case lexer.TStatic:
				static = true
			case lexer.TAbstract:
				abstract = true
			case lexer.TFinal:
				final = true
			default:
				goto modifiersDone
			}
			p.advance()
		}
	modifiersDone:
		switch {
		case p.at(lexer.TConst):
			p.advance()
			for _, d := range p.parseConstDecls() {
				consts = append(consts, d)
			}
			p.consumeStmtTerminator()
		case p.at(lexer.TFunction):
			startPos := pos(p.cur())
			p.advance()
			byRefReturn := false
			if p.atOp("&") {
				p.advance()
				byRefReturn = true
			}
			mname := p.advance().Literal
			params := p.parseParamList()
			retType := p.parseOptionalReturnType()
			var body []ast.Stmt
			if abstract || p.at(lexer.TSemicolon) {
				p.consumeStmtTerminator()
			} else {
				body = p.parseBlock()
			}
			methods = append(methods, ast.MethodDecl{
				Base: ast.At(startPos), Name: mname, Visibility: visibility,
				Static: static, Abstract: abstract, Final: final,
				Params: params, ByRefReturn: byRefReturn, ReturnType: retType, Body: body,
			})
		case p.at(lexer.TVariable):
			props = append(props, p.parsePropertyList(visibility, static)...)
			p.consumeStmtTerminator()
		default:
			// typed property declaration: skip the type token(s) (an
			// optional leading '?' for nullable, identifiers joined by
			// '|' for unions), then parse the $name list under the
			// visibility/static already collected this iteration so
			// they aren't lost once the type is skipped.
			if p.at(lexer.TQuestion) {
				p.advance()
			}
			p.advance()
			for p.atOp("|") {
				p.advance()
				p.advance()
			}
			props = append(props, p.parsePropertyList(visibility, static)...)
			p.consumeStmtTerminator()
		}
	}
	p.expect(lexer.TRBrace)
	return props, consts, methods
}
