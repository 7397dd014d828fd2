package extract

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/quarrylabs/quarry/internal/lang"
	"github.com/quarrylabs/quarry/internal/model"
)

// extractAST parses content with the given grammar and walks every node,
// extracting symbols with field-based node access so results are independent
// of formatting. The walk covers both the JavaScript/TypeScript and Python
// grammars; node types that exist in only one grammar simply never match for
// the other.
func extractAST(ctx context.Context, grammar *sitter.Language, content []byte) (table model.SymbolTable, err error) {
	// A bug while extracting one symbol must not discard what was already
	// collected; partial tables are valid.
	defer func() {
		if r := recover(); r != nil {
			err = nil
			if table.Functions == nil && table.Classes == nil && table.Imports == nil && table.Exports == nil {
				err = fmt.Errorf("symbol extraction panicked: %v", r)
			}
		}
	}()

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	tree, perr := parser.ParseCtx(ctx, nil, content)
	if perr != nil {
		return model.SymbolTable{}, fmt.Errorf("tree-sitter parse: %w", perr)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return model.SymbolTable{}, fmt.Errorf("tree-sitter returned no root node")
	}

	// Explicit stack; deep files must not exhaust the call stack.
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node.Type() {
		case "function_declaration", "generator_function_declaration":
			if fn := astFunction(node, content, isExportedDecl(node)); fn != nil {
				table.Functions = append(table.Functions, *fn)
			}

		case "function_definition": // python
			if enclosingClass(node) == nil {
				if fn := astPythonFunction(node, content); fn != nil {
					table.Functions = append(table.Functions, *fn)
				}
			}

		case "lexical_declaration", "variable_declaration":
			astVariableDeclaration(node, content, isExportedDecl(node), &table)

		case "class_declaration", "abstract_class_declaration":
			if cls := astClass(node, content); cls != nil {
				table.Classes = append(table.Classes, *cls)
			}

		case "class_definition": // python
			if cls := astPythonClass(node, content); cls != nil {
				table.Classes = append(table.Classes, *cls)
			}

		case "import_statement":
			if node.ChildByFieldName("name") != nil || hasChildOfType(node, "dotted_name") || hasChildOfType(node, "aliased_import") {
				astPythonImport(node, content, &table)
			} else {
				astModuleImport(node, content, &table)
			}

		case "import_from_statement": // python
			astPythonFromImport(node, content, &table)

		case "export_statement":
			astExport(node, content, &table)
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}

	return table, nil
}

// isExportedDecl reports whether a declaration sits directly under an export
// statement.
func isExportedDecl(node *sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Type() == "export_statement"
}

// enclosingClass walks up from a definition to the nearest function or class
// scope and returns the class node when the definition is a method.
func enclosingClass(node *sitter.Node) *sitter.Node {
	for current := node.Parent(); current != nil; current = current.Parent() {
		switch current.Type() {
		case "class_definition", "class_declaration", "abstract_class_declaration":
			return current
		case "function_definition", "function_declaration", "arrow_function", "function_expression", "method_definition":
			return nil
		}
	}
	return nil
}

// --- JavaScript / TypeScript ---

func astFunction(node *sitter.Node, content []byte, exported bool) *model.FunctionSymbol {
	var name string
	var isAsync bool
	var params []model.Parameter

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "async":
			isAsync = true
		case "identifier":
			name = lang.NodeText(child, content)
		case "formal_parameters":
			params = astParameters(child, content)
		}
	}
	if name == "" {
		return nil
	}

	vis := model.Public
	if exported {
		vis = model.Exported
	}
	return &model.FunctionSymbol{
		Name:       name,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Visibility: vis,
		Async:      isAsync,
		Parameters: params,
	}
}

// astVariableDeclaration extracts arrow functions bound to const/let/var and
// CommonJS require() bindings.
func astVariableDeclaration(node *sitter.Node, content []byte, exported bool, table *model.SymbolTable) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}

		nameNode := child.ChildByFieldName("name")
		valueNode := child.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		name := lang.NodeText(nameNode, content)

		switch valueNode.Type() {
		case "arrow_function", "function_expression", "function":
			if enclosingClass(child) != nil {
				continue
			}
			isAsync := hasChildOfType(valueNode, "async")
			var params []model.Parameter
			if p := valueNode.ChildByFieldName("parameters"); p != nil {
				params = astParameters(p, content)
			} else if p := valueNode.ChildByFieldName("parameter"); p != nil {
				// single-parameter arrow without parentheses
				params = []model.Parameter{{Name: lang.NodeText(p, content)}}
			}
			vis := model.Public
			if exported {
				vis = model.Exported
			}
			table.Functions = append(table.Functions, model.FunctionSymbol{
				Name:       name,
				StartLine:  int(node.StartPoint().Row) + 1,
				EndLine:    int(node.EndPoint().Row) + 1,
				Visibility: vis,
				Async:      isAsync,
				Parameters: params,
			})

		case "call_expression":
			if module := requireTarget(valueNode, content); module != "" {
				table.Imports = append(table.Imports, model.ImportSymbol{
					Module:    module,
					IsDefault: true,
					Line:      int(node.StartPoint().Row) + 1,
				})
			}
		}
	}
}

// requireTarget returns the module path of a require("...") call, or "".
func requireTarget(call *sitter.Node, content []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil || lang.NodeText(fn, content) != "require" {
		return ""
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		if arg := args.Child(i); arg.Type() == "string" {
			return stringContent(arg, content)
		}
	}
	return ""
}

func astClass(node *sitter.Node, content []byte) *model.ClassSymbol {
	var name, superclass string
	var body *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "type_identifier":
			if name == "" {
				name = lang.NodeText(child, content)
			}
		case "class_heritage":
			superclass = heritageSuperclass(child, content)
		case "class_body":
			body = child
		}
	}
	if name == "" {
		return nil
	}

	cls := &model.ClassSymbol{
		Name:       name,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Superclass: superclass,
		Methods:    []model.FunctionSymbol{},
		Properties: []string{},
	}
	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			switch member.Type() {
			case "method_definition":
				if m := astMethod(member, content); m != nil {
					cls.Methods = append(cls.Methods, *m)
				}
			case "public_field_definition", "field_definition":
				if prop := fieldName(member, content); prop != "" {
					cls.Properties = append(cls.Properties, prop)
				}
			}
		}
	}
	return cls
}

// heritageSuperclass pulls the superclass name out of a class_heritage node.
// The JavaScript and TypeScript grammars shape this node differently, so the
// text form is normalized instead of matching each grammar's children.
func heritageSuperclass(node *sitter.Node, content []byte) string {
	text := strings.TrimSpace(lang.NodeText(node, content))
	text = strings.TrimPrefix(text, "extends")
	if idx := strings.Index(text, "implements"); idx >= 0 {
		text = text[:idx]
	}
	// Drop type arguments: extends Base<T> -> Base
	if idx := strings.IndexByte(text, '<'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func astMethod(node *sitter.Node, content []byte) *model.FunctionSymbol {
	var name, accessModifier string
	var isAsync bool
	var params []model.Parameter

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "accessibility_modifier":
			accessModifier = lang.NodeText(child, content)
		case "async":
			isAsync = true
		case "property_identifier":
			name = lang.NodeText(child, content)
		case "formal_parameters":
			params = astParameters(child, content)
		}
	}
	if name == "" {
		return nil
	}

	vis := model.Public
	switch accessModifier {
	case "private":
		vis = model.Private
	case "protected":
		vis = model.Protected
	}
	return &model.FunctionSymbol{
		Name:       name,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Visibility: vis,
		Async:      isAsync,
		Parameters: params,
	}
}

func fieldName(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "property_identifier" {
			return lang.NodeText(child, content)
		}
	}
	return ""
}

// astParameters extracts a parameter list from formal_parameters (JS/TS) or
// parameters (Python), using field access for names, annotations and
// defaults.
func astParameters(node *sitter.Node, content []byte) []model.Parameter {
	var params []model.Parameter
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if p, ok := astParameter(child, content); ok {
			params = append(params, p)
		}
	}
	return params
}

func astParameter(node *sitter.Node, content []byte) (model.Parameter, bool) {
	var p model.Parameter

	switch node.Type() {
	case "identifier", "property_identifier":
		p.Name = lang.NodeText(node, content)

	case "required_parameter", "optional_parameter": // TS
		if pattern := node.ChildByFieldName("pattern"); pattern != nil {
			p.Name = lang.NodeText(pattern, content)
		}
		if t := node.ChildByFieldName("type"); t != nil {
			p.Type = strings.TrimSpace(strings.TrimPrefix(lang.NodeText(t, content), ":"))
		}
		if v := node.ChildByFieldName("value"); v != nil {
			p.Default = lang.NodeText(v, content)
		}

	case "assignment_pattern": // JS default value
		if left := node.ChildByFieldName("left"); left != nil {
			p.Name = lang.NodeText(left, content)
		}
		if right := node.ChildByFieldName("right"); right != nil {
			p.Default = lang.NodeText(right, content)
		}

	case "typed_parameter": // python: x: int
		if node.NamedChildCount() > 0 {
			p.Name = lang.NodeText(node.NamedChild(0), content)
		}
		if t := node.ChildByFieldName("type"); t != nil {
			p.Type = lang.NodeText(t, content)
		}

	case "default_parameter", "typed_default_parameter": // python: x=1, x: int = 1
		if n := node.ChildByFieldName("name"); n != nil {
			p.Name = lang.NodeText(n, content)
		}
		if t := node.ChildByFieldName("type"); t != nil {
			p.Type = lang.NodeText(t, content)
		}
		if v := node.ChildByFieldName("value"); v != nil {
			p.Default = lang.NodeText(v, content)
		}

	case "rest_pattern", "list_splat_pattern", "dictionary_splat_pattern":
		p.Name = lang.NodeText(node, content)

	case "object_pattern", "array_pattern":
		// Destructured parameter; keep the raw pattern text as the name.
		p.Name = lang.NodeText(node, content)

	default:
		return p, false
	}

	if p.Name == "" {
		return p, false
	}
	return p, true
}

// astModuleImport handles ES module import statements.
func astModuleImport(node *sitter.Node, content []byte, table *model.SymbolTable) {
	imp := model.ImportSymbol{Line: int(node.StartPoint().Row) + 1}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				clause := child.Child(j)
				switch clause.Type() {
				case "identifier":
					imp.IsDefault = true
				case "namespace_import":
					imp.IsNamespace = true
				case "named_imports":
					for k := 0; k < int(clause.ChildCount()); k++ {
						if spec := clause.Child(k); spec.Type() == "import_specifier" {
							if name := spec.ChildByFieldName("name"); name != nil {
								imp.Names = append(imp.Names, lang.NodeText(name, content))
							}
						}
					}
				}
			}
		case "string":
			imp.Module = stringContent(child, content)
		}
	}

	if imp.Module != "" {
		table.Imports = append(table.Imports, imp)
	}
}

// astExport handles export statements: exported declarations, export clauses
// and re-exports.
func astExport(node *sitter.Node, content []byte, table *model.SymbolTable) {
	line := int(node.StartPoint().Row) + 1
	isDefault := false
	var reexportSource string
	var clauseNames []string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "default":
			isDefault = true

		case "function_declaration", "generator_function_declaration":
			name := declName(child, content)
			table.Exports = append(table.Exports, model.ExportSymbol{
				Name: exportName(name), Kind: exportKind(model.ExportFunction, isDefault), Line: line,
			})

		case "class_declaration", "abstract_class_declaration":
			name := declName(child, content)
			table.Exports = append(table.Exports, model.ExportSymbol{
				Name: exportName(name), Kind: exportKind(model.ExportClass, isDefault), Line: line,
			})

		case "lexical_declaration", "variable_declaration":
			for _, name := range declaratorNames(child, content) {
				table.Exports = append(table.Exports, model.ExportSymbol{
					Name: name, Kind: model.ExportVariable, Line: line,
				})
			}

		case "interface_declaration", "type_alias_declaration", "enum_declaration":
			name := declName(child, content)
			table.Exports = append(table.Exports, model.ExportSymbol{
				Name: exportName(name), Kind: model.ExportType, Line: line,
			})

		case "export_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "export_specifier" {
					if name := spec.ChildByFieldName("name"); name != nil {
						clauseNames = append(clauseNames, lang.NodeText(name, content))
					}
				}
			}

		case "string":
			reexportSource = stringContent(child, content)

		case "identifier", "expression":
			// export default <expr>
			if isDefault {
				table.Exports = append(table.Exports, model.ExportSymbol{
					Name: "default", Kind: model.ExportDefault, Line: line,
				})
			}
		}
	}

	for _, name := range clauseNames {
		table.Exports = append(table.Exports, model.ExportSymbol{
			Name: name, Kind: model.ExportVariable, Line: line,
		})
	}

	// export { Foo } from './bar' also imports from the source module.
	if reexportSource != "" {
		table.Imports = append(table.Imports, model.ImportSymbol{
			Module:      reexportSource,
			Names:       clauseNames,
			IsNamespace: len(clauseNames) == 0,
			Line:        line,
		})
	}
}

func exportName(name string) string {
	if name == "" {
		return "default"
	}
	return name
}

func exportKind(kind model.ExportKind, isDefault bool) model.ExportKind {
	if isDefault {
		return model.ExportDefault
	}
	return kind
}

func declName(node *sitter.Node, content []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return lang.NodeText(n, content)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if t := child.Type(); t == "identifier" || t == "type_identifier" {
			return lang.NodeText(child, content)
		}
	}
	return ""
}

func declaratorNames(node *sitter.Node, content []byte) []string {
	var names []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		if n := child.ChildByFieldName("name"); n != nil {
			names = append(names, lang.NodeText(n, content))
		}
	}
	return names
}

// --- Python ---

func astPythonFunction(node *sitter.Node, content []byte) *model.FunctionSymbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeText(nameNode, content)

	var params []model.Parameter
	if p := node.ChildByFieldName("parameters"); p != nil {
		params = astParameters(p, content)
	}

	return &model.FunctionSymbol{
		Name:       name,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Visibility: pythonVisibility(name),
		Async:      hasChildOfType(node, "async"),
		Parameters: params,
	}
}

func pythonVisibility(name string) model.Visibility {
	if strings.HasPrefix(name, "_") {
		return model.Private
	}
	return model.Public
}

func astPythonClass(node *sitter.Node, content []byte) *model.ClassSymbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	cls := &model.ClassSymbol{
		Name:       lang.NodeText(nameNode, content),
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Methods:    []model.FunctionSymbol{},
		Properties: []string{},
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		if supers.NamedChildCount() > 0 {
			cls.Superclass = lang.NodeText(supers.NamedChild(0), content)
		}
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return cls
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		stmt := body.Child(i)
		target := stmt
		if stmt.Type() == "decorated_definition" {
			if def := stmt.ChildByFieldName("definition"); def != nil {
				target = def
			}
		}
		switch target.Type() {
		case "function_definition":
			if m := astPythonFunction(target, content); m != nil {
				cls.Methods = append(cls.Methods, *m)
			}
		case "expression_statement":
			// Class-level attribute: name = value or name: type = value.
			if prop := pythonClassAttribute(target, content); prop != "" {
				cls.Properties = append(cls.Properties, prop)
			}
		}
	}
	return cls
}

func pythonClassAttribute(stmt *sitter.Node, content []byte) string {
	if stmt.NamedChildCount() == 0 {
		return ""
	}
	expr := stmt.NamedChild(0)
	if expr.Type() != "assignment" {
		return ""
	}
	if left := expr.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
		return lang.NodeText(left, content)
	}
	return ""
}

// astPythonImport handles `import a.b, c as d`.
func astPythonImport(node *sitter.Node, content []byte, table *model.SymbolTable) {
	line := int(node.StartPoint().Row) + 1
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			table.Imports = append(table.Imports, model.ImportSymbol{
				Module: lang.NodeText(child, content), Line: line,
			})
		case "aliased_import":
			if n := child.ChildByFieldName("name"); n != nil {
				table.Imports = append(table.Imports, model.ImportSymbol{
					Module: lang.NodeText(n, content), Line: line,
				})
			}
		}
	}
}

// astPythonFromImport handles `from x import a, b` and `from . import y`.
func astPythonFromImport(node *sitter.Node, content []byte, table *model.SymbolTable) {
	imp := model.ImportSymbol{Line: int(node.StartPoint().Row) + 1}

	if mod := node.ChildByFieldName("module_name"); mod != nil {
		imp.Module = lang.NodeText(mod, content)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		// The module itself is also a named child; skip it.
		if mod := node.ChildByFieldName("module_name"); mod != nil && child.Equal(mod) {
			continue
		}
		switch child.Type() {
		case "dotted_name", "identifier":
			imp.Names = append(imp.Names, lang.NodeText(child, content))
		case "aliased_import":
			if n := child.ChildByFieldName("name"); n != nil {
				imp.Names = append(imp.Names, lang.NodeText(n, content))
			}
		case "wildcard_import":
			imp.IsNamespace = true
		}
	}

	if imp.Module != "" {
		table.Imports = append(table.Imports, imp)
	}
}

// --- shared helpers ---

func hasChildOfType(node *sitter.Node, typ string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

// stringContent returns a string literal's value without its quotes.
func stringContent(node *sitter.Node, content []byte) string {
	text := lang.NodeText(node, content)
	return strings.Trim(text, `"'`+"`")
}
