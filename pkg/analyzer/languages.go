package analyzer

import (
	"strings"
	"unsafe"

	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// grammar describes how metrics are read from one tree-sitter grammar.
type grammar struct {
	name     string
	language func() unsafe.Pointer

	functions map[string]bool
	decisions map[string]bool
	comments  map[string]bool
	// operands are named nodes counted as one Halstead operand without descending.
	operands map[string]bool

	// isClass reports a node whose nested functions are methods.
	isClass func(n sitter.Node) bool
	// countsAsClass reports a node counted in stats.classes.
	countsAsClass func(n sitter.Node) bool
	// isBoolean reports a short-circuit boolean operation.
	isBoolean func(n sitter.Node) bool
	// receiver returns the type name of a method declared outside its type.
	receiver func(n sitter.Node, src []byte) string
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}

	return m
}

var pythonGrammar = &grammar{
	name:      "python",
	language:  python.GetLanguage,
	functions: set("function_definition"),
	decisions: set(
		"if_statement", "elif_clause", "for_statement", "while_statement",
		"except_clause", "with_statement", "assert_statement",
		"conditional_expression", "for_in_clause", "if_clause", "case_clause",
	),
	comments: set("comment"),
	operands: set("string", "concatenated_string"),
	isClass: func(n sitter.Node) bool {
		return n.Type() == "class_definition"
	},
	countsAsClass: func(n sitter.Node) bool {
		return n.Type() == "class_definition"
	},
	isBoolean: func(n sitter.Node) bool {
		return n.Type() == "boolean_operator"
	},
	receiver: func(sitter.Node, []byte) string { return "" },
}

var goGrammar = &grammar{
	name:      "go",
	language:  golang.GetLanguage,
	functions: set("function_declaration", "method_declaration"),
	decisions: set(
		"if_statement", "for_statement", "expression_case", "type_case",
		"communication_case",
	),
	comments: set("comment"),
	operands: set("interpreted_string_literal", "raw_string_literal", "rune_literal"),
	isClass:  func(sitter.Node) bool { return false },
	countsAsClass: func(n sitter.Node) bool {
		if n.Type() != "type_spec" {
			return false
		}

		typ := n.ChildByFieldName("type")

		return !typ.IsNull() && typ.Type() == "struct_type"
	},
	isBoolean: func(n sitter.Node) bool {
		if n.Type() != "binary_expression" {
			return false
		}

		op := n.ChildByFieldName("operator")

		return !op.IsNull() && (op.Type() == "&&" || op.Type() == "||")
	},
	receiver: func(n sitter.Node, src []byte) string {
		if n.Type() != "method_declaration" {
			return ""
		}

		recv := n.ChildByFieldName("receiver")
		if recv.IsNull() {
			return ""
		}

		ident := firstOfType(recv, "type_identifier")
		if ident.IsNull() {
			return ""
		}

		return nodeText(ident, src)
	},
}

// grammarsByExtension maps file extensions to grammars.
var grammarsByExtension = map[string]*grammar{
	".py":  pythonGrammar,
	".pyi": pythonGrammar,
	".go":  goGrammar,
}

// grammarsByLanguage maps enry language names to grammars.
var grammarsByLanguage = map[string]*grammar{
	"Python": pythonGrammar,
	"Go":     goGrammar,
}

// SupportedExtensions lists the extensions with a grammar.
func SupportedExtensions() []string {
	return []string{".go", ".py", ".pyi"}
}

func firstOfType(n sitter.Node, typ string) sitter.Node {
	if n.Type() == typ {
		return n
	}

	for idx := range n.NamedChildCount() {
		found := firstOfType(n.NamedChild(idx), typ)
		if !found.IsNull() {
			return found
		}
	}

	return sitter.Node{}
}

func nodeText(n sitter.Node, src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if end > uint(len(src)) || start > end {
		return ""
	}

	return string(src[start:end])
}

// isPunctuation reports anonymous tokens that are not Halstead operators.
func isPunctuation(typ string) bool {
	switch typ {
	case "(", ")", "[", "]", "{", "}", ",", ":", ";", ".":
		return true
	}

	return strings.TrimSpace(typ) == ""
}
