package callgraph

import (
	"context"
	"errors"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/quarrylabs/quarry/internal/lang"
	"github.com/quarrylabs/quarry/internal/model"
)

// astCalls collects every call site in the file in one parse. Attribution to
// symbols happens later by line; only the call nodes matter here.
func astCalls(ctx context.Context, grammar *sitter.Language, content []byte) (calls []model.FunctionCall, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("parser panic")
		}
	}()

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node.Type() {
		case "call_expression", "call":
			if c, ok := callFromNode(node, node.ChildByFieldName("function"), content); ok {
				calls = append(calls, c)
			}
		case "new_expression":
			if c, ok := callFromNode(node, node.ChildByFieldName("constructor"), content); ok {
				calls = append(calls, c)
			}
		}

		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.NamedChild(i))
		}
	}
	return calls, nil
}

// calleeTextCap bounds the callee text kept for complex callee expressions.
const calleeTextCap = 100

// callFromNode classifies the callee expression. Member access records the
// receiver; plain identifiers record a direct call; anything more complex
// (a computed property, a call returning a function) records a direct call
// carrying the full callee text, capped.
func callFromNode(call, callee *sitter.Node, source []byte) (model.FunctionCall, bool) {
	if callee == nil {
		return model.FunctionCall{}, false
	}
	out := model.FunctionCall{
		Line:   int(call.StartPoint().Row) + 1,
		Column: int(call.StartPoint().Column) + 1,
	}

	switch callee.Type() {
	case "identifier":
		out.Callee = lang.NodeText(callee, source)
	case "member_expression":
		obj := callee.ChildByFieldName("object")
		prop := callee.ChildByFieldName("property")
		if prop == nil {
			return model.FunctionCall{}, false
		}
		out.Callee = lang.NodeText(prop, source)
		out.IsMethod = true
		if obj != nil {
			out.Receiver = lang.NodeText(obj, source)
		}
	case "attribute":
		obj := callee.ChildByFieldName("object")
		attr := callee.ChildByFieldName("attribute")
		if attr == nil {
			return model.FunctionCall{}, false
		}
		out.Callee = lang.NodeText(attr, source)
		out.IsMethod = true
		if obj != nil {
			out.Receiver = lang.NodeText(obj, source)
		}
	default:
		text := lang.NodeText(callee, source)
		if len(text) > calleeTextCap {
			text = text[:calleeTextCap]
		}
		out.Callee = text
	}
	if out.Callee == "" {
		return model.FunctionCall{}, false
	}
	return out, true
}
