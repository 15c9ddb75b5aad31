package expression

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/gorax/gorax/internal/workflow/formula"
)

// conditionCacheSize bounds the compiled-program cache shared by every
// conditional/switch/merge node; one process-wide cache since programs are
// keyed by expression text alone, not by node or tenant.
const conditionCacheSize = 1024

// Evaluator evaluates boolean expressions with support for operators. A
// shared formula.ExpressionCache avoids recompiling the same condition on
// every node dispatch, since workflow definitions re-evaluate their
// conditional/switch nodes on every run.
type Evaluator struct {
	parser *Parser
	cache  *formula.ExpressionCache
}

// NewEvaluator creates a new expression evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{
		parser: NewParser(),
		cache:  formula.NewExpressionCache(conditionCacheSize),
	}
}

// EvaluateCondition evaluates a boolean condition expression
// Returns true/false based on the evaluation result
func (e *Evaluator) EvaluateCondition(expression string, context map[string]interface{}) (bool, error) {
	if expression == "" {
		return false, fmt.Errorf("empty expression")
	}

	parsed, err := e.parser.Parse(expression)
	if err != nil {
		return false, fmt.Errorf("failed to parse expression: %w", err)
	}
	exprContent := parsed.Content

	program, err := e.compile(exprContent, context, expr.AsBool())
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, context)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	boolResult, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to boolean, got %T", result)
	}

	return boolResult, nil
}

// Evaluate evaluates any expression and returns the result
// This is more flexible than EvaluateCondition and can return any type
func (e *Evaluator) Evaluate(expression string, context map[string]interface{}) (interface{}, error) {
	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	parsed, err := e.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression: %w", err)
	}
	exprContent := parsed.Content

	program, err := e.compile(exprContent, context)
	if err != nil {
		return nil, err
	}

	result, err := expr.Run(program, context)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	return result, nil
}

// compile returns a cached compiled program for exprContent, compiling and
// caching it on a miss. Cache entries are keyed on expression text only:
// every context here is an untyped map[string]interface{}, so expr performs
// no static env type-checking that would make the program context-specific,
// and options must match exactly between a compile's first call and its
// reuse — EvaluateCondition and Evaluate never share a cache key because
// AsBool changes the compiled program.
func (e *Evaluator) compile(exprContent string, context map[string]interface{}, opts ...expr.Option) (*vm.Program, error) {
	cacheKey := exprContent
	if len(opts) > 0 {
		cacheKey = "bool:" + exprContent
	}

	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached.Program, nil
	}

	compileOpts := append([]expr.Option{expr.Env(context)}, opts...)
	program, err := expr.Compile(exprContent, compileOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	e.cache.Put(cacheKey, &formula.CachedExpression{Program: program})
	return program, nil
}

// EvaluateWithProgram evaluates a pre-compiled expression program
// This is more efficient when evaluating the same expression multiple times
func (e *Evaluator) EvaluateWithProgram(program *vm.Program, context map[string]interface{}) (interface{}, error) {
	result, err := expr.Run(program, context)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %w", err)
	}
	return result, nil
}

// CompileExpression compiles an expression for later evaluation
// This is useful for caching compiled expressions
func (e *Evaluator) CompileExpression(expression string, context map[string]interface{}) (*vm.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	// Parse the expression
	parsed, err := e.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression: %w", err)
	}

	// Compile the expression directly (expr library handles variable resolution at runtime)
	program, err := expr.Compile(parsed.Content, expr.Env(context))
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	return program, nil
}

// ValidateCondition validates that an expression is a valid boolean condition
func (e *Evaluator) ValidateCondition(expression string) error {
	if expression == "" {
		return fmt.Errorf("expression cannot be empty")
	}

	// Parse the expression
	parsed, err := e.parser.Parse(expression)
	if err != nil {
		return fmt.Errorf("failed to parse expression: %w", err)
	}

	// Validate basic syntax
	if err := e.parser.ValidateExpression(expression); err != nil {
		return err
	}

	// Try to compile with a mock context to catch syntax errors
	mockContext := map[string]interface{}{
		"steps": map[string]interface{}{
			"test": map[string]interface{}{
				"status": "success",
				"output": map[string]interface{}{
					"count": 10,
					"data":  []interface{}{1, 2, 3},
				},
			},
		},
		"trigger": map[string]interface{}{
			"body": map[string]interface{}{
				"field": "value",
			},
		},
		"env": map[string]interface{}{
			"tenant_id": "test-tenant",
		},
	}

	// Try to compile the expression with mock context
	_, err = expr.Compile(parsed.Content, expr.Env(mockContext), expr.AsBool())
	if err != nil {
		return fmt.Errorf("invalid condition expression: %w", err)
	}

	return nil
}

// EvaluateBooleanExpression is a convenience method for evaluating simple boolean expressions
// It handles common comparison operators and logical operators
func (e *Evaluator) EvaluateBooleanExpression(left interface{}, operator string, right interface{}) (bool, error) {
	switch operator {
	case "==", "equals":
		return compareEqual(left, right), nil
	case "!=", "not_equals":
		return !compareEqual(left, right), nil
	case ">", "greater_than":
		return compareGreater(left, right)
	case ">=", "greater_or_equal":
		result, err := compareGreater(left, right)
		if err != nil {
			return false, err
		}
		return result || compareEqual(left, right), nil
	case "<", "less_than":
		return compareLess(left, right)
	case "<=", "less_or_equal":
		result, err := compareLess(left, right)
		if err != nil {
			return false, err
		}
		return result || compareEqual(left, right), nil
	case "contains":
		return compareContains(left, right)
	case "starts_with":
		return compareStartsWith(left, right)
	case "ends_with":
		return compareEndsWith(left, right)
	default:
		return false, fmt.Errorf("unsupported operator: %s", operator)
	}
}

// Helper comparison functions

func compareEqual(left, right interface{}) bool {
	return reflect.DeepEqual(left, right)
}

func compareGreater(left, right interface{}) (bool, error) {
	leftNum, err := toFloat64(left)
	if err != nil {
		return false, err
	}
	rightNum, err := toFloat64(right)
	if err != nil {
		return false, err
	}
	return leftNum > rightNum, nil
}

func compareLess(left, right interface{}) (bool, error) {
	leftNum, err := toFloat64(left)
	if err != nil {
		return false, err
	}
	rightNum, err := toFloat64(right)
	if err != nil {
		return false, err
	}
	return leftNum < rightNum, nil
}

func compareContains(haystack, needle interface{}) (bool, error) {
	haystackStr, ok := haystack.(string)
	if !ok {
		return false, fmt.Errorf("contains operator requires string haystack, got %T", haystack)
	}
	needleStr := fmt.Sprintf("%v", needle)
	return contains(haystackStr, needleStr), nil
}

func compareStartsWith(str, prefix interface{}) (bool, error) {
	strVal, ok := str.(string)
	if !ok {
		return false, fmt.Errorf("starts_with operator requires string, got %T", str)
	}
	prefixStr := fmt.Sprintf("%v", prefix)
	return startsWith(strVal, prefixStr), nil
}

func compareEndsWith(str, suffix interface{}) (bool, error) {
	strVal, ok := str.(string)
	if !ok {
		return false, fmt.Errorf("ends_with operator requires string, got %T", str)
	}
	suffixStr := fmt.Sprintf("%v", suffix)
	return endsWith(strVal, suffixStr), nil
}

// Helper conversion functions

func toFloat64(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}

// String helper functions
func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func startsWith(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func endsWith(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
