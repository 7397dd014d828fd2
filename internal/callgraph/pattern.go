package callgraph

import (
	"regexp"
	"strings"

	"github.com/quarrylabs/quarry/internal/model"
)

var (
	methodCallRe = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\.\s*([A-Za-z_$][\w$]*)\s*\(`)
	directCallRe = regexp.MustCompile(`(?:^|[^\w$.])([A-Za-z_$][\w$]*)\s*\(`)
)

// patternCalls scans line by line for ident( and receiver.ident( shapes.
// Declarations are excluded by checking the word before the identifier;
// keyword filtering happens in Build so both strategies share it.
func patternCalls(content []byte) []model.FunctionCall {
	var calls []model.FunctionCall
	for i, line := range strings.Split(string(content), "\n") {
		lineNo := i + 1

		taken := make(map[int]struct{})
		for _, m := range methodCallRe.FindAllStringSubmatchIndex(line, -1) {
			recvStart, recvEnd := m[2], m[3]
			calleeStart, calleeEnd := m[4], m[5]
			if isDeclaration(line, recvStart) {
				continue
			}
			taken[calleeStart] = struct{}{}
			calls = append(calls, model.FunctionCall{
				Callee:   line[calleeStart:calleeEnd],
				Line:     lineNo,
				Column:   recvStart + 1,
				IsMethod: true,
				Receiver: line[recvStart:recvEnd],
			})
		}
		for _, m := range directCallRe.FindAllStringSubmatchIndex(line, -1) {
			start, end := m[2], m[3]
			if _, dup := taken[start]; dup {
				continue
			}
			if isDeclaration(line, start) {
				continue
			}
			calls = append(calls, model.FunctionCall{
				Callee: line[start:end],
				Line:   lineNo,
				Column: start + 1,
			})
		}
	}
	return calls
}

// isDeclaration reports whether the identifier at pos is being declared
// rather than called, judged by the word immediately before it.
func isDeclaration(line string, pos int) bool {
	switch precedingWord(line, pos) {
	case "def", "function", "class", "interface":
		return true
	}
	return false
}

func precedingWord(line string, pos int) string {
	end := pos
	for end > 0 && line[end-1] == ' ' {
		end--
	}
	start := end
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	return line[start:end]
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
