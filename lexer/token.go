// Package lexer implements the two-stage tokenizer: the raw splitter
// that partitions a source file into literal-text and scripting-code
// chunks at <?php/<?=/?> boundaries, and the code tokenizer that turns
// one scripting chunk into a Token stream.
package lexer

import "fmt"

// TokenType enumerates lexical classes. Values line up loosely with the
// PHP engine's own token numbering for the keywords and punctuation this
// grammar shares with it; this is cosmetic (it only has to be internally
// consistent), not a compatibility promise.
type TokenType int

const (
	TEOF TokenType = iota
	TInlineHTML
	TOpenTag     // <?php or <?
	TOpenTagEcho // <?=
	TCloseTag    // ?>

	TLNumber // integer literal
	TDNumber // float literal
	TString  // bareword identifier
	TVariable
	TConstantString // quoted / heredoc string content; single-quoted has \\ and \' resolved, double-quoted and heredoc is raw (the parser resolves it)

	// keywords
	TIf
	TElseif
	TElse
	TEndif
	TWhile
	TEndwhile
	TDo
	TFor
	TEndfor
	TForeach
	TEndforeach
	TAs
	TSwitch
	TEndswitch
	TCase
	TDefault
	TBreak
	TContinue
	TGoto
	TFunction
	TFn
	TConst
	TReturn
	TTry
	TCatch
	TFinally
	TThrow
	TGlobal
	TStatic
	TAbstract
	TFinal
	TPrivate
	TProtected
	TPublic
	TClass
	TInterface
	TExtends
	TImplements
	TNew
	TClone
	TInstanceof
	TEcho
	TPrint
	TExit
	TNamespace
	TUse
	TDeclare
	TList
	TArray
	TNull
	TTrue
	TFalse
	TAnd
	TOr
	TXor
	TNot
	TYield
	TIsset
	TUnset
	TEmpty

	// operators & punctuation (payload carries an *Operator where relevant)
	TOperator
	TAssign
	TArrow      // ->
	TDoubleArrow // =>
	TDoubleColon // ::
	TQuestion
	TColon
	TComma
	TSemicolon
	TAmp
	TDollar
	TLParen
	TRParen
	TLBrace
	TRBrace
	TLBracket
	TRBracket
	TBacktickString
	TNowdocString // nowdoc body: fully raw, no escapes, no interpolation
	TOther
)

var keywords = map[string]TokenType{
	"if": TIf, "elseif": TElseif, "else": TElse, "endif": TEndif,
	"while": TWhile, "endwhile": TEndwhile, "do": TDo,
	"for": TFor, "endfor": TEndfor, "foreach": TForeach, "endforeach": TEndforeach, "as": TAs,
	"switch": TSwitch, "endswitch": TEndswitch, "case": TCase, "default": TDefault,
	"break": TBreak, "continue": TContinue, "goto": TGoto,
	"function": TFunction, "fn": TFn, "const": TConst, "return": TReturn,
	"try": TTry, "catch": TCatch, "finally": TFinally, "throw": TThrow,
	"global": TGlobal, "static": TStatic, "abstract": TAbstract, "final": TFinal,
	"private": TPrivate, "protected": TProtected, "public": TPublic,
	"class": TClass, "interface": TInterface, "extends": TExtends, "implements": TImplements,
	"new": TNew, "clone": TClone, "instanceof": TInstanceof,
	"echo": TEcho, "print": TPrint, "exit": TExit, "die": TExit,
	"namespace": TNamespace, "use": TUse, "declare": TDeclare,
	"list": TList, "array": TArray,
	"null": TNull, "true": TTrue, "false": TFalse,
	"and": TAnd, "or": TOr, "xor": TXor, "not": TNot, "yield": TYield,
	"isset": TIsset, "unset": TUnset, "empty": TEmpty,
}

// Position is a source location: 1-based line, 1-based column, 0-based
// byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Operator describes one entry of the fixed binary/unary operator
// table: textual form, precedence (a lower number binds tighter; the
// table runs from -3 to 15), associativity, and nothing about the target
// opcode — that mapping lives in compiler.binaryOp, keeping the lexer
// ignorant of code generation.
type Operator struct {
	Text  string
	Prec  int
	Assoc Assoc
}

type Assoc byte

const (
	AssocLeft Assoc = iota
	AssocRight
	AssocNone
)

// Token is one lexeme.
type Token struct {
	Type     TokenType
	Literal  string
	Pos      Position
	Operator *Operator
}

func (t Token) String() string {
	return fmt.Sprintf("%v(%q)@%d:%d", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}

func (t TokenType) String() string {
	if t < TokenType(len(tokenNames)) {
		return tokenNames[t]
	}
	return "TOKEN"
}

var tokenNames = []string{
	"EOF", "INLINE_HTML", "OPEN_TAG", "OPEN_TAG_ECHO", "CLOSE_TAG",
	"LNUMBER", "DNUMBER", "STRING", "VARIABLE", "CONSTANT_STRING",
	"if", "elseif", "else", "endif", "while", "endwhile", "do",
	"for", "endfor", "foreach", "endforeach", "as",
	"switch", "endswitch", "case", "default",
	"break", "continue", "goto", "function", "fn", "const", "return",
	"try", "catch", "finally", "throw", "global", "static", "abstract", "final",
	"private", "protected", "public", "class", "interface", "extends", "implements",
	"new", "clone", "instanceof", "echo", "print", "exit", "namespace", "use", "declare",
	"list", "array", "null", "true", "false", "and", "or", "xor", "not", "yield",
	"isset", "unset", "empty",
	"OPERATOR", "=", "->", "=>", "::", "?", ":", ",", ";", "&", "$",
	"(", ")", "{", "}", "[", "]", "BACKTICK_STRING", "NOWDOC_STRING", "OTHER",
}
