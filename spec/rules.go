package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	cachedPrefix = "$"
	modulePrefix = "$py"
)

// FilepathRule accepts strings naming an existing regular file. Relative
// paths are looked up under baseDir, or the working directory when empty.
func FilepathRule(baseDir string) Rule {
	locate := func(raw any) (string, bool) {
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return "", false
		}
		path := s
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return "", false
		}
		return path, true
	}
	return Rule{
		Kind: KindFilepath,
		Match: func(raw any) bool {
			_, ok := locate(raw)
			return ok
		},
		Build: func(raw any) (Spec, error) {
			path, ok := locate(raw)
			if !ok {
				return nil, fmt.Errorf("%w: %v", ErrFileNotFound, raw)
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", path, err)
			}
			return &Filepath{
				Path: raw.(string),
				Abs:  abs,
				Ext:  strings.TrimPrefix(filepath.Ext(path), "."),
			}, nil
		},
	}
}

// ExpressionRule accepts strings starting with "(" that contain an operator.
func ExpressionRule() Rule {
	return Rule{
		Kind: KindExpression,
		Match: func(raw any) bool {
			s, ok := raw.(string)
			return ok && strings.HasPrefix(s, "(") && firstOperator(s) != ""
		},
		Build: func(raw any) (Spec, error) {
			return ParseExpression(raw.(string))
		},
	}
}

// CachedRule accepts strings whose segment before the first ":" is "$".
func CachedRule() Rule {
	return Rule{
		Kind:  KindCached,
		Match: prefixMatcher(cachedPrefix),
		Build: func(raw any) (Spec, error) {
			return ParseCached(raw.(string))
		},
	}
}

// ModuleCallRule accepts strings whose segment before the first ":" is "$py".
func ModuleCallRule() Rule {
	return Rule{
		Kind:  KindModuleCall,
		Match: prefixMatcher(modulePrefix),
		Build: func(raw any) (Spec, error) {
			return ParseModuleCall(raw.(string))
		},
	}
}

// MultiRule accepts lists.
func MultiRule() Rule {
	return Rule{
		Kind: KindMulti,
		Match: func(raw any) bool {
			_, ok := raw.([]any)
			return ok
		},
		Build: func(raw any) (Spec, error) {
			items := raw.([]any)
			return &Multi{RawItems: append([]any(nil), items...)}, nil
		},
	}
}

// ValueRule accepts scalars. It is meant as the registry fallback, so its
// constructor rejects anything that is not a scalar.
func ValueRule() Rule {
	return Rule{
		Kind:  KindValue,
		Match: isScalar,
		Build: func(raw any) (Spec, error) {
			if !isScalar(raw) {
				return nil, fmt.Errorf("%w: %T", ErrUnknownSpecKind, raw)
			}
			return &Value{Raw: raw}, nil
		},
	}
}

func isScalar(raw any) bool {
	switch raw.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func prefixMatcher(prefix string) Predicate {
	return func(raw any) bool {
		s, ok := raw.(string)
		if !ok {
			return false
		}
		head, _, _ := strings.Cut(s, ":")
		return head == prefix
	}
}

func firstOperator(s string) Operator {
	for _, op := range operators {
		if strings.Contains(s, string(op)) {
			return op
		}
	}
	return ""
}

// ParseExpression splits "(a<op>b...)" on the first operator found, searching
// "+", "-", "*", "/" in that order. Parentheses and spaces are dropped before
// splitting; there is no precedence.
func ParseExpression(raw string) (*Expression, error) {
	op := firstOperator(raw)
	if op == "" {
		return nil, fmt.Errorf("%w: %q has no operator", ErrInvalidExpressionSyntax, raw)
	}
	body := strings.NewReplacer(" ", "", "(", "", ")", "").Replace(raw)
	operands := strings.Split(body, string(op))
	for i, operand := range operands {
		if operand == "" {
			return nil, fmt.Errorf("%w: %q has an empty operand at position %d", ErrInvalidExpressionSyntax, raw, i)
		}
	}
	return &Expression{Raw: raw, Operator: op, RawOperands: operands}, nil
}

// ParseCached parses "$:source" or "$:source.field".
func ParseCached(raw string) (*Cached, error) {
	head, target, found := strings.Cut(raw, ":")
	if head != cachedPrefix || !found {
		return nil, fmt.Errorf("%w: %q must look like $:key", ErrInvalidCachedSyntax, raw)
	}
	target = strings.TrimSpace(target)
	source, field, _ := strings.Cut(target, ".")
	if source == "" {
		return nil, fmt.Errorf("%w: %q has no source key", ErrInvalidCachedSyntax, raw)
	}
	return &Cached{Raw: raw, Source: source, Field: field}, nil
}

// ParseModuleCall parses "$py:pkg.sub.func(arg1,arg2)". Argument text may not
// contain parentheses.
func ParseModuleCall(raw string) (*ModuleCall, error) {
	head, call, found := strings.Cut(raw, ":")
	if head != modulePrefix || !found {
		return nil, fmt.Errorf("%w: %q is missing ':'", ErrInvalidModuleCallSyntax, raw)
	}
	call = strings.TrimSpace(call)
	open := strings.Index(call, "(")
	if open < 0 || !strings.HasSuffix(call, ")") {
		return nil, fmt.Errorf("%w: %q is missing parentheses", ErrInvalidModuleCallSyntax, raw)
	}
	name := strings.TrimSpace(call[:open])
	argText := call[open+1 : len(call)-1]
	if strings.ContainsAny(argText, "()") {
		return nil, fmt.Errorf("%w: %q has nested parentheses", ErrInvalidModuleCallSyntax, raw)
	}
	segments := strings.Split(name, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: %q has an empty name segment", ErrInvalidModuleCallSyntax, raw)
		}
	}

	var args []string
	argText = strings.ReplaceAll(argText, " ", "")
	if argText != "" {
		args = strings.Split(argText, ",")
		for i, arg := range args {
			if arg == "" {
				return nil, fmt.Errorf("%w: %q has an empty argument at position %d", ErrInvalidModuleCallSyntax, raw, i)
			}
		}
	}

	return &ModuleCall{
		Raw:      raw,
		Module:   segments[:len(segments)-1],
		Function: segments[len(segments)-1],
		RawArgs:  args,
	}, nil
}
