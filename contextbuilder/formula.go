package contextbuilder

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/cartagen/coerce"
	"github.com/liamcoop/cartagen/dsl"
)

// ErrUnsafeExpression is returned when an arithmetic formula still holds
// anything but digits and operators after field substitution.
var ErrUnsafeExpression = errors.New("expression contains disallowed characters")

var (
	callPattern       = regexp.MustCompile(`^(\w+)\(([^)]+)\)`)
	identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	safeArithmetic    = regexp.MustCompile(`^[\d\s.+\-*/()]+$`)
	numberLiteral     = regexp.MustCompile(`\d+(\.\d+)?`)
	yearPattern       = regexp.MustCompile(`\d{4}`)
)

type formulaFunc func(args ...any) any

var formulaFunctions = map[string]formulaFunc{
	"extract_year":          extractYear,
	"format_directors_list": func(args ...any) any { return FormatDirectors(args[0]) },
	"bool_to_sino":          func(args ...any) any { return coerce.BoolToSiNo(args[0]) },
	// sum is reserved; list aggregation is not supported and always yields 0.
	"sum": func(...any) any { return 0 },
}

// evaluateFormula computes one derived value. A nil result with a nil
// error means the formula did not apply.
func evaluateFormula(formula string, data map[string]any) (any, error) {
	formula = strings.TrimSpace(formula)

	if m := callPattern.FindStringSubmatch(formula); m != nil {
		if fn, ok := formulaFunctions[m[1]]; ok {
			var args []any
			for _, arg := range strings.Split(m[2], ",") {
				arg = strings.TrimSpace(arg)
				if v, present := data[arg]; present {
					args = append(args, v)
				} else {
					args = append(args, arg)
				}
			}
			return fn(args...), nil
		}
	}

	for _, op := range []string{" - ", " + "} {
		if !strings.Contains(formula, op) {
			continue
		}
		parts := strings.Split(formula, op)
		if len(parts) != 2 {
			continue
		}
		left, lok := coerce.ToInt(operand(parts[0], data))
		right, rok := coerce.ToInt(operand(parts[1], data))
		if !lok || !rok {
			return nil, fmt.Errorf("operands of %q are not integers", formula)
		}
		if op == " - " {
			return left - right, nil
		}
		return left + right, nil
	}

	if strings.Contains(formula, " * ") || strings.Contains(formula, " / ") {
		return defaultArithmetic.eval(substituteNumbers(formula, data))
	}
	return nil, nil
}

// operand resolves a context key, or reads the text as a number literal.
func operand(token string, data map[string]any) any {
	token = strings.TrimSpace(token)
	if v, ok := data[token]; ok {
		return v
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	return token
}

// substituteNumbers replaces identifiers that name numeric context values
// with their value. Other identifiers are left in place and fail the
// safety check.
func substituteNumbers(formula string, data map[string]any) string {
	return identifierPattern.ReplaceAllStringFunc(formula, func(name string) string {
		v := dsl.Lookup(data, name)
		if !coerce.IsNumber(v) {
			return name
		}
		return coerce.String(v)
	})
}

func extractYear(args ...any) any {
	switch v := args[0].(type) {
	case time.Time:
		return v.Year()
	case string:
		if d, ok := coerce.ParseDate(v); ok {
			return d.Year()
		}
		if m := yearPattern.FindString(v); m != "" {
			year, _ := strconv.Atoi(m)
			return year
		}
	}
	return nil
}

// arithmetic evaluates guarded +-*/ expressions with CEL. Literals are
// widened to doubles so mixed int/float expressions type-check, and compiled
// programs are cached by expression text.
type arithmetic struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.RWMutex
}

const (
	arithmeticCostLimit = 10000
	maxCachedPrograms   = 1024
)

var defaultArithmetic = newArithmetic()

func newArithmetic() *arithmetic {
	env, err := cel.NewEnv()
	if err != nil {
		panic(fmt.Sprintf("contextbuilder: create CEL environment: %v", err))
	}
	return &arithmetic{env: env, programs: make(map[string]cel.Program)}
}

func (a *arithmetic) eval(expr string) (any, error) {
	if !safeArithmetic.MatchString(expr) {
		return nil, ErrUnsafeExpression
	}
	expr = numberLiteral.ReplaceAllStringFunc(expr, func(lit string) string {
		if strings.Contains(lit, ".") {
			return lit
		}
		return lit + ".0"
	})

	prog, err := a.program(expr)
	if err != nil {
		return nil, err
	}
	out, _, err := prog.Eval(cel.NoVars())
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	f, ok := out.Value().(float64)
	if !ok {
		return nil, fmt.Errorf("evaluate %q: non-numeric result %v", expr, out.Value())
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("evaluate %q: result is not finite", expr)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return int64(f), nil
	}
	return f, nil
}

func (a *arithmetic) program(expr string) (cel.Program, error) {
	a.mu.RLock()
	prog, ok := a.programs[expr]
	a.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := a.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prog, err := a.env.Program(ast, cel.CostLimit(arithmeticCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}

	a.mu.Lock()
	if len(a.programs) >= maxCachedPrograms {
		a.programs = make(map[string]cel.Program)
	}
	a.programs[expr] = prog
	a.mu.Unlock()
	return prog, nil
}
