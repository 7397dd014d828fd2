package lang

// Languages classified by the walker but extracted with the pattern fallback
// only. No grammar is bundled for these; Grammar stays nil and the extractor
// selects the pattern strategy for the whole run.
func init() {
	cFamily := []struct {
		name string
		exts []string
	}{
		{"go", []string{".go"}},
		{"java", []string{".java"}},
		{"c", []string{".c", ".h"}},
		{"cpp", []string{".cpp", ".cc", ".cxx", ".hpp"}},
		{"csharp", []string{".cs"}},
		{"rust", []string{".rs"}},
		{"php", []string{".php"}},
	}
	for _, l := range cFamily {
		Languages[l.name] = &Language{
			Name:       l.name,
			Extensions: l.exts,
			Patterns:   PatternsCFamily,
		}
	}

	Languages["ruby"] = &Language{
		Name:       "ruby",
		Extensions: []string{".rb"},
		Patterns:   PatternsPython,
	}
}
