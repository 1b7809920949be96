package macro

import (
	"strconv"
	"strings"
)

// rawArg is one not-yet-typed call argument as written in the source: either
// positional (Name == "") or a name=value keyword argument.
type rawArg struct {
	Name string
	Raw  string
}

// Parse compiles macro source text into a runnable Macro (spec §4.2).
func Parse(source string) (*Macro, error) {
	cleaned := stripComments(source)
	cleaned = stripInsignificantWhitespace(cleaned)
	if cleaned == "" {
		return NewMacro(nil), nil
	}
	rewritten, err := rewritePlusSyntax(cleaned)
	if err != nil {
		return nil, err
	}
	prog, err := parseProgram(rewritten)
	if err != nil {
		return nil, err
	}
	return NewMacro(prog), nil
}

// parseProgram parses a '.'-chained sequence of calls.
func parseProgram(s string) (Program, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	segments := splitTopLevel(s, '.')
	prog := make(Program, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return nil, parseErrf(s, "empty call in macro chain")
		}
		t, err := parseCall(seg)
		if err != nil {
			return nil, err
		}
		prog = append(prog, t)
	}
	return prog, nil
}

func parseCall(seg string) (Task, error) {
	idx := strings.IndexByte(seg, '(')
	if idx < 0 {
		return nil, parseErrf(seg, "expected '(' after task name")
	}
	name := seg[:idx]
	if !isIdentifier(name) {
		return nil, parseErrf(name, "invalid task name")
	}
	if !strings.HasSuffix(seg, ")") {
		return nil, parseErrf(seg, "expected ')' to close call")
	}
	closeIdx, err := findMatchingBracket(seg, idx)
	if err != nil {
		return nil, err
	}
	if closeIdx != len(seg)-1 {
		return nil, parseErrf(seg, "trailing characters after closing ')'")
	}

	argsStr := seg[idx+1 : closeIdx]
	rawArgs, err := splitArgs(argsStr)
	if err != nil {
		return nil, err
	}

	builder, ok := taskBuilders[strings.ToLower(name)]
	if !ok {
		return nil, parseErrf(name, "unknown macro task")
	}
	return builder(rawArgs)
}

// splitArgs splits a call's argument string on top-level commas and detects
// name=value keyword arguments.
func splitArgs(s string) ([]rawArg, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := splitTopLevel(s, ',')
	out := make([]rawArg, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, parseErrf(s, "empty argument")
		}
		eqIdx := findTopLevelEquals(p)
		if eqIdx > 0 && isIdentifier(strings.TrimSpace(p[:eqIdx])) {
			out = append(out, rawArg{Name: strings.TrimSpace(p[:eqIdx]), Raw: strings.TrimSpace(p[eqIdx+1:])})
		} else {
			out = append(out, rawArg{Raw: p})
		}
	}
	return out, nil
}

// bindArgs arranges raw arguments (positional and keyword) against a fixed
// parameter-name list, per spec §4.2's ArgumentConfig binding rules: named
// arguments fill their slot by name, positional arguments fill the next
// unfilled slot in order, and a name not in paramNames or a slot filled
// twice is an error naming the offending argument.
func bindArgs(paramNames []string, args []rawArg) ([]string, error) {
	slots := make([]string, len(paramNames))
	used := make([]bool, len(paramNames))
	next := 0
	for _, a := range args {
		if a.Name == "" {
			for next < len(paramNames) && used[next] {
				next++
			}
			if next >= len(paramNames) {
				return nil, parseErrf(a.Raw, "too many positional arguments")
			}
			slots[next] = a.Raw
			used[next] = true
			next++
			continue
		}
		idx := indexOfString(paramNames, a.Name)
		if idx < 0 {
			return nil, parseErrf(a.Name, "unknown argument name")
		}
		if used[idx] {
			return nil, parseErrf(a.Name, "argument given twice")
		}
		slots[idx] = a.Raw
		used[idx] = true
	}
	return slots, nil
}

func indexOfString(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

// parseScalarArg parses a raw argument string expected to hold a value
// (literal, $variable, or empty for "omitted optional").
func parseScalarArg(raw string) (argValue, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return argValue{present: false}, nil
	}
	if strings.HasPrefix(raw, "$") {
		return argValue{present: true, isVar: true, varName: raw[1:]}, nil
	}
	if strings.HasPrefix(raw, `"`) {
		s, err := unquote(raw)
		if err != nil {
			return argValue{}, err
		}
		return argValue{present: true, lit: StringValue(s), quoted: true}, nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return argValue{present: true, lit: IntValue(i)}, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return argValue{present: true, lit: FloatValue(f)}, nil
	}
	return argValue{present: true, lit: StringValue(raw)}, nil
}

// parseProgramArg parses a raw argument string expected to hold a nested
// child macro (hold's optional program, repeat/modify's body, an if_*
// branch). An empty string means "no branch" (None in the original).
func parseProgramArg(raw string) (argValue, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return argValue{present: false, isProgram: true}, nil
	}
	prog, err := parseProgram(raw)
	if err != nil {
		return argValue{}, err
	}
	return argValue{present: true, isProgram: true, program: prog}, nil
}
