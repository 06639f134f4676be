package semtok

// TokenType represents the semantic meaning of a token
type TokenType uint32

const (
	// TokenVariable represents a variable or parameter
	TokenVariable TokenType = iota + 1

	// TokenFunction represents a function or method name
	TokenFunction

	// TokenKeyword represents a language keyword
	TokenKeyword

	// TokenOperator represents an operator
	TokenOperator

	// TokenString represents a string literal
	TokenString

	// TokenComment represents a comment
	TokenComment

	// TokenNumber represents a numeric literal (e.g., 0, 1.5)
	TokenNumber

	// TokenTypeName represents a type, class or storage type name
	TokenTypeName
)

// TokenModifier represents additional characteristics of a token
type TokenModifier uint32

const (
	// ModifierNone indicates no special characteristics
	ModifierNone TokenModifier = 0

	// ModifierDeclaration marks the name being declared (entity.name.*)
	ModifierDeclaration TokenModifier = 1 << (iota - 1)

	// ModifierReadonly marks constants
	ModifierReadonly

	// ModifierDefaultLibrary marks names the language provides (support.*)
	ModifierDefaultLibrary
)

// Legend lists the token type names in the order Encode numbers them, for an LSP
// SemanticTokensLegend.
var Legend = []string{"variable", "function", "keyword", "operator", "string", "comment", "number", "type"}

// ModifierLegend lists the modifier names in bit order.
var ModifierLegend = []string{"declaration", "readonly", "defaultLibrary"}

// Token is one semantic token. Start and Length are character offsets within the line.
type Token struct {
	Line     int           `json:"line"`
	Start    int           `json:"start"`
	Length   int           `json:"length"`
	Type     TokenType     `json:"type"`
	Modifier TokenModifier `json:"modifier"`
	Scope    string        `json:"scope"`
}

// String returns a human-readable representation of the token type
func (t TokenType) String() string {
	switch t {
	case TokenVariable:
		return "variable"
	case TokenFunction:
		return "function"
	case TokenKeyword:
		return "keyword"
	case TokenOperator:
		return "operator"
	case TokenString:
		return "string"
	case TokenComment:
		return "comment"
	case TokenNumber:
		return "number"
	case TokenTypeName:
		return "type"
	default:
		return "unknown"
	}
}

// String returns a human-readable representation of the token modifier
func (m TokenModifier) String() string {
	switch m {
	case ModifierNone:
		return "none"
	case ModifierDeclaration:
		return "declaration"
	case ModifierReadonly:
		return "readonly"
	case ModifierDefaultLibrary:
		return "defaultLibrary"
	default:
		return "unknown"
	}
}
