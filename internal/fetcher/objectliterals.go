package fetcher

import (
	"encoding/json"
	"log"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// ExtractObjectLiterals returns every strict-JSON object embedded in a
// script body. A body that is itself one JSON object is returned alone
// without invoking the JavaScript parser. Otherwise the body is parsed
// as a program and its syntax tree walked depth-first: an object
// literal whose source slice reparses as strict JSON is captured whole
// and not descended into; one that does not (function values, computed
// keys) is descended in search of pure literals nested inside. A body
// that fails to parse yields nothing, so one broken script cannot take
// down the page.
func ExtractObjectLiterals(script string) []map[string]any {
	var whole map[string]any
	if err := json.Unmarshal([]byte(script), &whole); err == nil {
		return []map[string]any{whole}
	}

	program, err := parser.ParseFile(nil, "", script, 0)
	if err != nil {
		log.Printf("Extractor: script is neither JSON nor parseable JavaScript, skipping: %v", err)
		return nil
	}

	v := &objectLiteralVisitor{src: script}
	ast.Walk(v, program)
	return v.found
}

type objectLiteralVisitor struct {
	src   string
	found []map[string]any
}

func (v *objectLiteralVisitor) Enter(n ast.Node) ast.Visitor {
	lit, ok := n.(*ast.ObjectLiteral)
	if !ok {
		return v
	}

	// Idx values are 1-based file offsets; Idx1 points one past the
	// closing brace.
	raw := v.src[lit.Idx0()-1 : lit.Idx1()-1]

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return v
	}

	v.found = append(v.found, obj)
	return nil
}

func (v *objectLiteralVisitor) Exit(ast.Node) {}
