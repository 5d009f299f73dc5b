package analysis

import (
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	perrors "github.com/matzehuels/parsegraph/pkg/errors"
)

// Token is one lexical token reported by the backend.
type Token struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// ParseTree is the parse tree in its two textual encodings.
type ParseTree struct {
	Lisp string `json:"lisp"`
	Dot  string `json:"dot"`
}

// Diagnostic is a syntax error reported by the backend.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// AST is the abstract syntax tree graph. Not every backend sends one.
type AST struct {
	Dot string `json:"dot"`
}

// Result is a validated analysis response.
type Result struct {
	Success   bool         `json:"success"`
	Tokens    []Token      `json:"tokens"`
	ParseTree ParseTree    `json:"parseTree"`
	Errors    []Diagnostic `json:"errors"`
	AST       *AST         `json:"ast,omitempty"`
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := r
	out.Tokens = slices.Clone(r.Tokens)
	out.Errors = slices.Clone(r.Errors)
	if r.AST != nil {
		ast := *r.AST
		out.AST = &ast
	}
	return out
}

// Wire types use pointers so that an absent field can be told apart from a
// zero value.

type wireResult struct {
	Success   *bool            `json:"success" validate:"required"`
	Tokens    []wireToken      `json:"tokens" validate:"required,dive"`
	ParseTree *wireParseTree   `json:"parseTree" validate:"required"`
	Errors    []wireDiagnostic `json:"errors" validate:"required,dive"`
	AST       *wireAST         `json:"ast"`
}

type wireToken struct {
	Type   string `json:"type" validate:"required"`
	Text   string `json:"text" validate:"required"`
	Line   *int   `json:"line" validate:"required,gte=0"`
	Column *int   `json:"column" validate:"required,gte=0"`
}

type wireParseTree struct {
	Lisp *string `json:"lisp" validate:"required"`
	Dot  *string `json:"dot" validate:"required"`
}

type wireDiagnostic struct {
	Line    *int    `json:"line" validate:"required,gte=0"`
	Column  *int    `json:"column" validate:"required,gte=0"`
	Message *string `json:"message" validate:"required"`
}

type wireAST struct {
	Dot *string `json:"dot" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report failures with the JSON field names the backend uses.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeResult parses and validates an analysis response body. Any missing or
// mistyped field is an INVALID_FORMAT error naming the first offending field.
func DecodeResult(data []byte) (Result, error) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return Result{}, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "invalid analysis response: field %q has the wrong type", te.Field)
		}
		return Result{}, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "invalid analysis response")
	}
	if err := validate.Struct(&w); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Result{}, perrors.New(perrors.ErrCodeInvalidFormat,
				"invalid analysis response: field %q failed %q", fieldPath(fe.Namespace()), fe.Tag())
		}
		return Result{}, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "invalid analysis response")
	}
	return w.result(), nil
}

// CheckResult reports whether r would pass [DecodeResult] again. It guards
// results read back from disk, which bypassed validation on the way in.
func CheckResult(r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "encode result")
	}
	_, err = DecodeResult(data)
	return err
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

func (w *wireResult) result() Result {
	r := Result{
		Success: *w.Success,
		Tokens:  make([]Token, len(w.Tokens)),
		ParseTree: ParseTree{
			Lisp: *w.ParseTree.Lisp,
			Dot:  *w.ParseTree.Dot,
		},
		Errors: make([]Diagnostic, len(w.Errors)),
	}
	for i, t := range w.Tokens {
		r.Tokens[i] = Token{Type: t.Type, Text: t.Text, Line: *t.Line, Column: *t.Column}
	}
	for i, d := range w.Errors {
		r.Errors[i] = Diagnostic{Line: *d.Line, Column: *d.Column, Message: *d.Message}
	}
	if w.AST != nil {
		r.AST = &AST{Dot: *w.AST.Dot}
	}
	return r
}
