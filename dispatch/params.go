package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnexpectedTypeParam = errors.New("unexpected parameter type")
	ErrNotEnoughParams     = errors.New("not enough parameters")
)

// Param is an argument captured when a callback is dispatched.
type Param any

// AssertParam is the most basic way to assert [Param] type, and is most useful when there are only 1 or 2 parameters.
func AssertParam[T any](param Param) (T, bool) {
	if param == nil {
		var mt T
		return mt, false
	}
	val, ok := param.(T)
	return val, ok
}

// ParamAssertion is a function that asserts constraints of a [Param].
// The pos parameter is informational and usually should not be the subject of an assertion.
type ParamAssertion func(pos int, p Param) error

// IsType asserts that a [Param] is of the expected type.
func IsType[T any]() ParamAssertion {
	return func(pos int, p Param) error {
		if _, ok := p.(T); !ok {
			var expected T
			return fmt.Errorf("%w: parameter %d: expected %T, but got %T", ErrUnexpectedTypeParam, pos, expected, p)
		}
		return nil
	}
}

// AssertAndStore will return a [ParamAssertion] that will first assert that the [Param] is of the expected type, and then store its value in the target pointer.
// The target parameter cannot be a nil pointer.
func AssertAndStore[T any](target *T) ParamAssertion {
	if target == nil {
		return func(pos int, _ Param) error {
			return fmt.Errorf("target for param %d is nil pointer", pos)
		}
	}
	return func(pos int, p Param) error {
		if p == nil {
			return fmt.Errorf("%w: parameter %d is nil", ErrUnexpectedTypeParam, pos)
		}
		if err := IsType[T]()(pos, p); err != nil {
			return err
		}
		*target = p.(T)
		return nil
	}
}

// Optional can be used if a [Param] at this position is not required in all cases.
func Optional(ifNotNil ParamAssertion) ParamAssertion {
	return func(pos int, p Param) error {
		if p == nil {
			return nil
		}
		return ifNotNil(pos, p)
	}
}

// ParamSpec uses all given [ParamAssertion] to create a function that can make assertions about all params.
// The assertion at position 0 will be applied to the [Param] at position 0, and so on for all parameters.
// If a [ParamAssertion] at a position is nil, then that [Param] will have no assertions applied to it.
// If the number of parameters is less than minParams, then an error will be immediately returned without running any [ParamAssertion].
func ParamSpec(minParams int, assertions ...ParamAssertion) func(params []Param) error {
	return func(params []Param) error {
		if len(params) < minParams {
			return fmt.Errorf("%w: expected at least %d parameters, got %d", ErrNotEnoughParams, minParams, len(params))
		}
		var errs []error
		for i := 0; i < len(assertions) && i < len(params); i++ {
			if assertions[i] == nil {
				continue
			}
			if err := assertions[i](i, params[i]); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// MapParam maps a single parameter to a target variable, which is how typed callbacks receive their argument.
func MapParam[T any](target *T, params []Param) error {
	return ParamSpec(1, AssertAndStore(target))(params)
}

const maxParamSummary = 120

// summarizeParams renders params for log output, truncating long values.
func summarizeParams(params []Param) string {
	if len(params) == 0 {
		return "[]"
	}
	var buf strings.Builder
	buf.WriteString("[")
	for i, p := range params {
		if i > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(fmt.Sprintf("%+v", p))
		if buf.Len() > maxParamSummary {
			break
		}
	}
	s := buf.String()
	if len(s) > maxParamSummary {
		cut := maxParamSummary
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "...]"
	}
	return s + "]"
}
