package extract

import (
	"regexp"
	"strings"

	"github.com/quarrylabs/quarry/internal/lang"
	"github.com/quarrylabs/quarry/internal/model"
)

// The pattern fallback recognizes common single-line declaration forms. It is
// deliberately narrower than the AST strategy: multi-line declarations and
// unusual syntax are missed, end lines collapse to the start line, and class
// bodies are not descended into. A non-matching line contributes no symbol;
// nothing here can fail.

var (
	// Python family
	pyFuncRe   = regexp.MustCompile(`^\s*(async\s+)?def\s+([A-Za-z_]\w*)\s*\(([^)]*)\)?`)
	pyClassRe  = regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)\s*(?:\(\s*([^),]*)[^)]*\))?\s*:`)
	pyImportRe = regexp.MustCompile(`^\s*import\s+([\w.]+(?:\s*,\s*[\w.]+)*)`)
	pyFromRe   = regexp.MustCompile(`^\s*from\s+([\w.]+|\.+[\w.]*)\s+import\s+(.+)$`)

	// C family
	cFuncRe      = regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(([^)]*)\)?`)
	cArrowRe     = regexp.MustCompile(`^\s*(export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(async\s+)?(?:\(([^)]*)\)|([A-Za-z_$][\w$]*))\s*=>`)
	cClassRe     = regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)(?:\s+extends\s+([A-Za-z_$][\w$.]*))?`)
	cNamedImpRe  = regexp.MustCompile(`^\s*import\s+(?:type\s+)?\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]`)
	cNsImpRe     = regexp.MustCompile(`^\s*import\s+\*\s+as\s+[A-Za-z_$][\w$]*\s+from\s*['"]([^'"]+)['"]`)
	cDefaultImpR = regexp.MustCompile(`^\s*import\s+(?:type\s+)?([A-Za-z_$][\w$]*)\s*(?:,\s*\{([^}]*)\})?\s*from\s*['"]([^'"]+)['"]`)
	cBareImpRe   = regexp.MustCompile(`^\s*import\s*['"]([^'"]+)['"]`)
	cRequireRe   = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+[A-Za-z_$][\w$]*\s*=\s*require\(\s*['"]([^'"]+)['"]`)
	cExportRe    = regexp.MustCompile(`^\s*export\s+(default\s+)?(function|class|const|let|var|type|interface|enum)\s*\*?\s*([A-Za-z_$][\w$]*)?`)
	cExportDefRe = regexp.MustCompile(`^\s*export\s+default\s+([A-Za-z_$][\w$]*)`)
)

// extractPattern runs the line-oriented fallback for the given family.
func extractPattern(family lang.PatternFamily, content []byte) model.SymbolTable {
	lines := strings.Split(string(content), "\n")
	var table model.SymbolTable
	if family == lang.PatternsPython {
		for i, line := range lines {
			patternPythonLine(line, i+1, &table)
		}
		return table
	}
	for i, line := range lines {
		patternCFamilyLine(line, i+1, &table)
	}
	return table
}

func patternPythonLine(line string, lineNo int, table *model.SymbolTable) {
	if m := pyFuncRe.FindStringSubmatch(line); m != nil {
		table.Functions = append(table.Functions, model.FunctionSymbol{
			Name:       m[2],
			StartLine:  lineNo,
			EndLine:    lineNo,
			Visibility: pythonVisibility(m[2]),
			Async:      m[1] != "",
			Parameters: patternParams(m[3]),
		})
		return
	}
	if m := pyClassRe.FindStringSubmatch(line); m != nil {
		table.Classes = append(table.Classes, model.ClassSymbol{
			Name:       m[1],
			StartLine:  lineNo,
			EndLine:    lineNo,
			Superclass: strings.TrimSpace(m[2]),
			Methods:    []model.FunctionSymbol{},
			Properties: []string{},
		})
		return
	}
	if m := pyFromRe.FindStringSubmatch(line); m != nil {
		imp := model.ImportSymbol{Module: m[1], Line: lineNo}
		rest := strings.TrimSpace(strings.Trim(m[2], "()"))
		if rest == "*" {
			imp.IsNamespace = true
		} else {
			for _, name := range strings.Split(rest, ",") {
				name = strings.TrimSpace(name)
				if idx := strings.Index(name, " as "); idx >= 0 {
					name = strings.TrimSpace(name[:idx])
				}
				if name != "" {
					imp.Names = append(imp.Names, name)
				}
			}
		}
		table.Imports = append(table.Imports, imp)
		return
	}
	if m := pyImportRe.FindStringSubmatch(line); m != nil {
		for _, mod := range strings.Split(m[1], ",") {
			table.Imports = append(table.Imports, model.ImportSymbol{
				Module: strings.TrimSpace(mod), Line: lineNo,
			})
		}
	}
}

func patternCFamilyLine(line string, lineNo int, table *model.SymbolTable) {
	if m := cFuncRe.FindStringSubmatch(line); m != nil {
		vis := model.Public
		if m[1] != "" {
			vis = model.Exported
		}
		table.Functions = append(table.Functions, model.FunctionSymbol{
			Name:       m[4],
			StartLine:  lineNo,
			EndLine:    lineNo,
			Visibility: vis,
			Async:      m[3] != "",
			Parameters: patternParams(m[5]),
		})
	} else if m := cArrowRe.FindStringSubmatch(line); m != nil {
		vis := model.Public
		if m[1] != "" {
			vis = model.Exported
		}
		params := m[4]
		if params == "" && m[5] != "" {
			params = m[5]
		}
		table.Functions = append(table.Functions, model.FunctionSymbol{
			Name:       m[2],
			StartLine:  lineNo,
			EndLine:    lineNo,
			Visibility: vis,
			Async:      m[3] != "",
			Parameters: patternParams(params),
		})
	} else if m := cClassRe.FindStringSubmatch(line); m != nil {
		table.Classes = append(table.Classes, model.ClassSymbol{
			Name:       m[3],
			StartLine:  lineNo,
			EndLine:    lineNo,
			Superclass: m[4],
			Methods:    []model.FunctionSymbol{},
			Properties: []string{},
		})
	}

	switch {
	case cNamedImpRe.MatchString(line):
		m := cNamedImpRe.FindStringSubmatch(line)
		imp := model.ImportSymbol{Module: m[2], Line: lineNo}
		for _, name := range strings.Split(m[1], ",") {
			name = strings.TrimSpace(name)
			if idx := strings.Index(name, " as "); idx >= 0 {
				name = strings.TrimSpace(name[:idx])
			}
			if name != "" {
				imp.Names = append(imp.Names, name)
			}
		}
		table.Imports = append(table.Imports, imp)
	case cNsImpRe.MatchString(line):
		m := cNsImpRe.FindStringSubmatch(line)
		table.Imports = append(table.Imports, model.ImportSymbol{
			Module: m[1], IsNamespace: true, Line: lineNo,
		})
	case cDefaultImpR.MatchString(line):
		m := cDefaultImpR.FindStringSubmatch(line)
		imp := model.ImportSymbol{Module: m[3], IsDefault: true, Line: lineNo}
		for _, name := range strings.Split(m[2], ",") {
			if name = strings.TrimSpace(name); name != "" {
				imp.Names = append(imp.Names, name)
			}
		}
		table.Imports = append(table.Imports, imp)
	case cRequireRe.MatchString(line):
		m := cRequireRe.FindStringSubmatch(line)
		table.Imports = append(table.Imports, model.ImportSymbol{
			Module: m[1], IsDefault: true, Line: lineNo,
		})
	case cBareImpRe.MatchString(line):
		m := cBareImpRe.FindStringSubmatch(line)
		table.Imports = append(table.Imports, model.ImportSymbol{
			Module: m[1], Line: lineNo,
		})
	}

	if m := cExportRe.FindStringSubmatch(line); m != nil {
		name := m[3]
		kind := model.ExportVariable
		switch m[2] {
		case "function":
			kind = model.ExportFunction
		case "class":
			kind = model.ExportClass
		case "type", "interface", "enum":
			kind = model.ExportType
		}
		if m[1] != "" {
			kind = model.ExportDefault
		}
		if name == "" {
			name = "default"
		}
		table.Exports = append(table.Exports, model.ExportSymbol{
			Name: name, Kind: kind, Line: lineNo,
		})
	} else if m := cExportDefRe.FindStringSubmatch(line); m != nil {
		table.Exports = append(table.Exports, model.ExportSymbol{
			Name: m[1], Kind: model.ExportDefault, Line: lineNo,
		})
	}
}

// patternParams splits a single-line parameter list into names with optional
// type annotations and defaults. Nested parentheses or generics confuse it;
// the AST strategy handles those.
func patternParams(raw string) []model.Parameter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var params []model.Parameter
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var p model.Parameter
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			p.Default = strings.TrimSpace(part[idx+1:])
			part = strings.TrimSpace(part[:idx])
		}
		if idx := strings.IndexByte(part, ':'); idx >= 0 {
			p.Type = strings.TrimSpace(part[idx+1:])
			part = strings.TrimSpace(part[:idx])
		}
		p.Name = strings.TrimSuffix(part, "?")
		if p.Name != "" {
			params = append(params, p)
		}
	}
	return params
}
