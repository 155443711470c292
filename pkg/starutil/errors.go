package starutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ErrIncorrectType is returned when a value can't be converted to what a
// builtin argument needs.
type ErrIncorrectType struct {
	Want string
	Got  string
}

func (e ErrIncorrectType) Error() string {
	return fmt.Sprintf("got %s, want %s", e.Got, e.Want)
}

// ErrUnhashable is returned by the Hash method of values that can't be dict
// keys or set members. It holds the value's type name.
type ErrUnhashable string

func (err ErrUnhashable) Error() string {
	return fmt.Sprintf("unhashable type: %s", string(err))
}

// AnnotateError renders err for a descriptor author. Starlark errors get the
// offending descriptor line with a marker under the column, errors that
// carry a hint get it appended.
func AnnotateError(err error) string {
	sb := new(strings.Builder)
	var (
		resolveErrs resolve.ErrorList
		evalErr     *starlark.EvalError
	)
	switch {
	case errors.As(err, &resolveErrs):
		word := "errors"
		if len(resolveErrs) == 1 {
			word = "error"
		}
		fmt.Fprintf(sb, "%d %s in descriptor:\n", len(resolveErrs), word)
		for _, e := range resolveErrs {
			fmt.Fprintf(sb, "error: %s\n", e.Msg)
			writeSnippet(sb, e.Pos)
		}
	case errors.As(err, &evalErr):
		writeEvalError(sb, evalErr)
	default:
		fmt.Fprintf(sb, "%v\n", err)
	}
	var hinted interface{ Hint() string }
	if errors.As(err, &hinted) {
		fmt.Fprintf(sb, "hint: %s\n", hinted.Hint())
	}
	return sb.String()
}

// writeEvalError reports the error at the innermost frame that has a source
// position. Builtins don't have one, a failing environment() or when() call is
// reported at its call site instead.
func writeEvalError(sb *strings.Builder, err *starlark.EvalError) {
	stack := err.CallStack
	builtin := ""
	for len(stack) > 0 && !stack[len(stack)-1].Pos.IsValid() {
		builtin = stack[len(stack)-1].Name
		stack = stack[:len(stack)-1]
	}
	if builtin != "" {
		fmt.Fprintf(sb, "error in %s(): %s\n", builtin, err.Msg)
	} else {
		fmt.Fprintf(sb, "error: %s\n", err.Msg)
	}
	if len(stack) == 0 {
		return
	}
	writeSnippet(sb, stack[len(stack)-1].Pos)
	if len(stack) == 1 {
		return
	}
	fmt.Fprintln(sb, "called from:")
	for i := len(stack) - 2; i >= 0; i-- {
		fmt.Fprintf(sb, "  %s: in %s\n", stack[i].Pos, stack[i].Name)
	}
}

// writeSnippet writes the position followed by its source line, numbered,
// with a caret under the column.
func writeSnippet(sb *strings.Builder, pos syntax.Position) {
	fmt.Fprintf(sb, "  %s\n", pos)
	line, ok := sourceLine(pos.Filename(), pos.Line)
	if !ok {
		return
	}
	gutter := fmt.Sprintf("%d", pos.Line)
	fmt.Fprintf(sb, "  %s | %s\n", gutter, line)
	if pos.Col > 0 {
		fmt.Fprintf(sb, "  %s | %s^\n", strings.Repeat(" ", len(gutter)), strings.Repeat(" ", int(pos.Col)-1))
	}
}

func sourceLine(path string, lineNumber int32) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	for index := int32(1); scanner.Scan(); index++ {
		if index == lineNumber {
			return strings.TrimRight(scanner.Text(), "\r"), true
		}
	}
	return "", false
}
