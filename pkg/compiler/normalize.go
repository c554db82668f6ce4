package compiler

import (
	"regexp"
	"strings"
)

var (
	reImport      = regexp.MustCompile(`^import\s+([A-Za-z_$][\w$]*)\s*\(\s*from\s*=\s*("[^"]*"|'[^']*')\s*\)$`)
	reBlockHeader = regexp.MustCompile(`^(?:script|style|data)(?:\(.*\))?\.?$`)
	reMember      = regexp.MustCompile(`^(?:method|event|when)\b`)
	reWhen        = regexp.MustCompile(`^when\s+([\w$]+)`)
	reTagLead     = regexp.MustCompile(`^[\w-]+`)
)

// normalizeBlocks makes script, style and data blocks and implementation
// members raw text blocks by appending the dot their header may lack.
// when declarations become event-when tags and parameters without a
// default get "= undefined". Lines are never added or removed.
func normalizeBlocks(_ *Plugin, src string) (string, error) {
	type frame struct {
		indent int
		tag    string
	}
	var stack []frame
	raw := -1

	lines := strings.Split(src, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if raw >= 0 {
			if indent > raw {
				continue
			}
			raw = -1
		}
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}

		parent := ""
		if len(stack) > 0 {
			parent = stack[len(stack)-1].tag
		}
		atComponent := len(stack) == 0 || (len(stack) == 1 && parent == "component")

		switch {
		case parent == "implementation" && reMember.MatchString(trimmed):
			lines[i] = line[:indent] + normalizeMember(trimmed)
			raw = indent
		case atComponent && reBlockHeader.MatchString(trimmed):
			if !strings.HasSuffix(trimmed, ".") {
				lines[i] = line[:indent] + trimmed + "."
			}
			raw = indent
		}
		stack = append(stack, frame{indent: indent, tag: reTagLead.FindString(trimmed)})
	}
	return strings.Join(lines, "\n"), nil
}

// normalizeMember rewrites one implementation member header
func normalizeMember(line string) string {
	line = strings.TrimSuffix(line, ".")
	if m := reWhen.FindStringSubmatch(line); m != nil {
		line = "event-when#" + m[1] + line[len(m[0]):]
	}
	if open := strings.IndexByte(line, '('); open >= 0 && strings.HasSuffix(line, ")") {
		params := splitParams(line[open+1 : len(line)-1])
		for i, param := range params {
			if !strings.Contains(param, "=") {
				params[i] = param + " = undefined"
			}
		}
		line = line[:open] + "(" + strings.Join(params, ", ") + ")"
	}
	return line + "."
}

// splitParams splits a parameter list at top-level commas
func splitParams(s string) []string {
	var params []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		params = append(params, last)
	}
	return params
}
