// Package model defines the core data structures produced by the pipeline.
package model

import "time"

// Visibility classifies who may see a declared symbol.
type Visibility string

const (
	Public    Visibility = "public"
	Private   Visibility = "private"
	Protected Visibility = "protected"
	Exported  Visibility = "exported"
)

// ExportKind classifies what an export statement exports.
type ExportKind string

const (
	ExportFunction ExportKind = "function"
	ExportClass    ExportKind = "class"
	ExportVariable ExportKind = "variable"
	ExportType     ExportKind = "type"
	ExportDefault  ExportKind = "default"
)

// Parameter is a single function parameter. Type and Default are empty when
// the declaration does not carry them.
type Parameter struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
}

// FunctionSymbol is a named function or method with its line span.
// Lines are 1-indexed and inclusive; EndLine >= StartLine.
type FunctionSymbol struct {
	Name       string      `json:"name"`
	StartLine  int         `json:"startLine"`
	EndLine    int         `json:"endLine"`
	Visibility Visibility  `json:"visibility"`
	Async      bool        `json:"async,omitempty"`
	Parameters []Parameter `json:"parameters"`
}

// ClassSymbol is a named class. Methods and Properties may be empty when the
// active extraction strategy does not descend into class bodies; that is a
// documented limitation of the pattern fallback, not a defect.
type ClassSymbol struct {
	Name       string           `json:"name"`
	StartLine  int              `json:"startLine"`
	EndLine    int              `json:"endLine"`
	Superclass string           `json:"superclass,omitempty"`
	Methods    []FunctionSymbol `json:"methods"`
	Properties []string         `json:"properties"`
}

// ImportSymbol records one import statement as written in the source.
type ImportSymbol struct {
	// Module is the raw specifier, e.g. "./util" or "react".
	Module string `json:"module"`
	// Names lists the imported items; empty for default and namespace imports.
	Names       []string `json:"names"`
	IsDefault   bool     `json:"isDefault,omitempty"`
	IsNamespace bool     `json:"isNamespace,omitempty"`
	Line        int      `json:"line"`
}

// ExportSymbol records one exported name.
type ExportSymbol struct {
	Name string     `json:"name"`
	Kind ExportKind `json:"kind"`
	Line int        `json:"line"`
}

// SymbolTable holds everything extracted from a single file. Partial tables
// are valid: a failure extracting one symbol never invalidates the rest.
type SymbolTable struct {
	Functions []FunctionSymbol `json:"functions"`
	Classes   []ClassSymbol    `json:"classes"`
	Imports   []ImportSymbol   `json:"imports"`
	Exports   []ExportSymbol   `json:"exports"`
}

// FileRecord is one scanned file. Path is the project-relative,
// forward-slash-normalized unique key. Records are recomputed wholesale on
// every run, never merged.
type FileRecord struct {
	Path     string      `json:"path"`
	Language string      `json:"language"`
	Size     int64       `json:"size"`
	Hash     string      `json:"hash"`
	ModTime  time.Time   `json:"modTime"`
	Symbols  SymbolTable `json:"symbols"`
}

// LineCount reports the number of lines in content, counting a trailing
// partial line. Used to validate symbol spans.
func LineCount(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	if content[len(content)-1] == '\n' {
		n--
	}
	return n
}

// DependencyEdge is a directed import edge. For internal edges To is a known
// FileRecord path; for external edges To is the raw specifier as written.
type DependencyEdge struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	External bool     `json:"external,omitempty"`
	Names    []string `json:"names,omitempty"`
	Line     int      `json:"line"`
}

// DependencyGraph is the edge set plus its derived views. Each circular group
// is an ordered path whose first element is repeated at the end to show
// closure. Orphans is a bounded sample; OrphanCount is the true count.
type DependencyGraph struct {
	Edges       []DependencyEdge `json:"edges"`
	Circular    [][]string       `json:"circular"`
	Orphans     []string         `json:"orphans"`
	OrphanCount int              `json:"orphanCount"`
}

// FunctionCall is one outgoing call recorded inside a symbol's line span.
type FunctionCall struct {
	Callee   string `json:"callee"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
	IsMethod bool   `json:"isMethod,omitempty"`
	Receiver string `json:"receiver,omitempty"`
}

// CallGraphNode is the per-function record of outgoing calls. QualifiedName
// is "Class.method" for methods and the bare name otherwise.
type CallGraphNode struct {
	File          string         `json:"file"`
	Name          string         `json:"name"`
	QualifiedName string         `json:"qualifiedName"`
	Line          int            `json:"line"`
	Calls         []FunctionCall `json:"calls"`
}
