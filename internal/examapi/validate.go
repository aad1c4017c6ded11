package examapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Issue codes.
const (
	CodeInvalidType   = "invalid_type"
	CodeTooSmall      = "too_small"
	CodeInvalidFormat = "invalid_format"
	CodeInvalidValue  = "invalid_value"
	CodeCustom        = "custom"
)

// maxSafeInteger bounds integer fields to values a float64 holds exactly.
const maxSafeInteger = 1<<53 - 1

var (
	reISODate           = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
	reISOTime           = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d(\.\d+)?)?$`)
	reISODatetimeLocal  = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])T([01]\d|2[0-3]):[0-5]\d(:[0-5]\d(\.\d+)?)?$`)
	reISODatetimeOffset = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])T([01]\d|2[0-3]):[0-5]\d(:[0-5]\d(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})$`)
)

var formatNames = map[string]string{
	"iso_date":            "ISO date",
	"iso_time":            "ISO time",
	"iso_datetime_local":  "ISO local datetime",
	"iso_datetime_offset": "ISO datetime with offset",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	register := func(tag string, re *regexp.Regexp) {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		}); err != nil {
			panic("examapi: register " + tag + ": " + err.Error())
		}
	}
	register("iso_date", reISODate)
	register("iso_time", reISOTime)
	register("iso_datetime_local", reISODatetimeLocal)
	register("iso_datetime_offset", reISODatetimeOffset)
	return v
}

// Issue describes one schema violation.
type Issue struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError reports a response body that does not match the
// expected schema. Data holds the offending payload.
type ValidationError struct {
	Message string
	Issues  []Issue
	Data    any
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return e.Message
	}
	first := e.Issues[0]
	msg := fmt.Sprintf("%s: %s: %s", e.Message, first.Path, first.Message)
	if n := len(e.Issues) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// String renders the error with a bounded view of the payload.
func (e *ValidationError) String() string {
	out, err := json.MarshalIndent(e.Report(), "", "  ")
	if err != nil {
		return e.Error()
	}
	return string(out)
}

// Report is the JSON shape of a ValidationError with the payload truncated.
type Report struct {
	Name    string  `json:"name"`
	Message string  `json:"message"`
	Issues  []Issue `json:"issues"`
	Data    any     `json:"data"`
}

func (e *ValidationError) Report() Report {
	return Report{
		Name:    "ValidationError",
		Message: e.Message,
		Issues:  e.Issues,
		Data:    truncate(e.Data, 0),
	}
}

// Validate checks a decoded JSON value (as produced by encoding/json into
// an any) against the search response schema. Every violated field is
// reported: value constraints still run on each record whose shape is
// correct, even when other records have type errors.
func Validate(data any) (*SearchResponse, error) {
	var issues []Issue
	checkShape(data, reflect.TypeOf(SearchResponse{}), nil, &issues)

	obj, ok := data.(map[string]any)
	if !ok {
		return nil, newValidationError(issues, data)
	}

	var resp SearchResponse
	if !hasIssueUnder(issues, "info") {
		valueIssues, err := checkValues(obj["info"], &resp.Info, "info")
		if err != nil {
			return nil, err
		}
		issues = append(issues, valueIssues...)
	}
	// A shape error in one record must not hide value errors in the others.
	if arr, ok := obj["results"].([]any); ok {
		resp.Results = make([]RawExam, len(arr))
		for i, el := range arr {
			prefix := "results." + strconv.Itoa(i)
			if hasIssueUnder(issues, prefix) {
				continue
			}
			valueIssues, err := checkValues(el, &resp.Results[i], prefix)
			if err != nil {
				return nil, err
			}
			issues = append(issues, valueIssues...)
		}
	}

	if len(issues) > 0 {
		return nil, newValidationError(issues, data)
	}
	return &resp, nil
}

// checkValues decodes one shape-checked subtree into dst and runs the
// value constraints on it. Issue paths are rebased onto prefix.
func checkValues(v any, dst any, prefix string) ([]Issue, error) {
	// The shape is known to match, so this round-trip cannot fail on types.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("examapi: re-encode %s: %w", prefix, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("examapi: decode %s: %w", prefix, err)
	}

	err = validate.Struct(dst)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issue := fieldIssue(fe)
		issue.Path = prefix + "." + issue.Path
		issues = append(issues, issue)
	}
	return issues, nil
}

// hasIssueUnder reports whether any issue sits at path or below it.
func hasIssueUnder(issues []Issue, path string) bool {
	for _, issue := range issues {
		if issue.Path == path || strings.HasPrefix(issue.Path, path+".") {
			return true
		}
	}
	return false
}

func newValidationError(issues []Issue, data any) *ValidationError {
	return &ValidationError{
		Message: "failed to validate search response",
		Issues:  issues,
		Data:    data,
	}
}

// checkShape compares a decoded JSON value against the Go type it should
// decode into and records every kind mismatch.
func checkShape(v any, t reflect.Type, path []string, issues *[]Issue) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			addTypeIssue(issues, path, expectedName(t), "string")
			return
		}
		v = f
	}

	switch t.Kind() {
	case reflect.Interface:
		return
	case reflect.Pointer:
		if v == nil {
			return
		}
		checkShape(v, t.Elem(), path, issues)
	case reflect.Struct:
		obj, ok := v.(map[string]any)
		if !ok {
			addTypeIssue(issues, path, "object", kindOf(v))
			return
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := fieldName(f)
			if name == "" {
				continue
			}
			fv, present := obj[name]
			fieldPath := append(path[:len(path):len(path)], name)
			if !present {
				if f.Type.Kind() != reflect.Interface && !optional(f) {
					addTypeIssue(issues, fieldPath, expectedName(f.Type), "undefined")
				}
				continue
			}
			checkShape(fv, f.Type, fieldPath, issues)
		}
	case reflect.Slice:
		arr, ok := v.([]any)
		if !ok {
			addTypeIssue(issues, path, "array", kindOf(v))
			return
		}
		for i, el := range arr {
			checkShape(el, t.Elem(), append(path[:len(path):len(path)], strconv.Itoa(i)), issues)
		}
	case reflect.String:
		if _, ok := v.(string); !ok {
			addTypeIssue(issues, path, "string", kindOf(v))
		}
	case reflect.Bool:
		if _, ok := v.(bool); !ok {
			addTypeIssue(issues, path, "boolean", kindOf(v))
		}
	case reflect.Int, reflect.Int64:
		f, ok := v.(float64)
		if !ok {
			addTypeIssue(issues, path, "int", kindOf(v))
			return
		}
		if f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
			addTypeIssue(issues, path, "int", "number")
		}
	case reflect.Float64:
		if _, ok := v.(float64); !ok {
			addTypeIssue(issues, path, "number", kindOf(v))
		}
	}
}

func addTypeIssue(issues *[]Issue, path []string, want, got string) {
	*issues = append(*issues, Issue{
		Code:    CodeInvalidType,
		Path:    strings.Join(path, "."),
		Message: fmt.Sprintf("Invalid input: expected %s, received %s", want, got),
	})
}

func expectedName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return expectedName(t.Elem())
	case reflect.Struct:
		return "object"
	case reflect.Slice:
		return "array"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int64:
		return "int"
	case reflect.Float64:
		return "number"
	default:
		return t.Kind().String()
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// optional reports whether a field may be missing from the payload.
func optional(f reflect.StructField) bool {
	_, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
	return strings.Contains(opts, "omitempty")
}

func jsonName(f reflect.StructField) string {
	name := fieldName(f)
	if name == "" {
		return "-"
	}
	return name
}

// fieldIssue converts a validator error into an Issue with a dotted path.
func fieldIssue(fe validator.FieldError) Issue {
	issue := Issue{Path: dottedPath(fe.Namespace())}
	switch fe.Tag() {
	case "eq":
		issue.Code = CodeInvalidValue
		issue.Message = fmt.Sprintf("Invalid input: expected %q", fe.Param())
	case "min":
		issue.Code = CodeTooSmall
		issue.Message = fmt.Sprintf("Too small: expected %s to be >=%s", numberKind(fe.Kind()), fe.Param())
	default:
		if name, ok := formatNames[fe.Tag()]; ok {
			issue.Code = CodeInvalidFormat
			issue.Message = fmt.Sprintf("Invalid %s: %q", name, valueString(fe.Value()))
			return issue
		}
		issue.Code = CodeCustom
		issue.Message = fmt.Sprintf("Failed %q check", fe.Tag())
	}
	return issue
}

func valueString(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "null"
	}
	return fmt.Sprint(rv.Interface())
}

func numberKind(k reflect.Kind) string {
	if k == reflect.Float64 || k == reflect.Float32 {
		return "number"
	}
	return "int"
}

// dottedPath turns "SearchResponse.results[0].courseId" into
// "results.0.courseId".
func dottedPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	} else {
		return ""
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	return strings.ReplaceAll(ns, "]", "")
}

// Bounds for rendering payloads in error output.
const (
	maxDepth       = 5
	maxArrayLength = 5
	maxStringLen   = 200
)

func truncate(v any, depth int) any {
	switch x := v.(type) {
	case string:
		if len(x) > maxStringLen {
			return x[:maxStringLen] + fmt.Sprintf("... %d more characters", len(x)-maxStringLen)
		}
		return x
	case []any:
		if depth >= maxDepth {
			return "[Array]"
		}
		n := min(len(x), maxArrayLength)
		out := make([]any, 0, n+1)
		for _, el := range x[:n] {
			out = append(out, truncate(el, depth+1))
		}
		if extra := len(x) - n; extra > 0 {
			out = append(out, fmt.Sprintf("... %d more items", extra))
		}
		return out
	case map[string]any:
		if depth >= maxDepth {
			return "[Object]"
		}
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = truncate(el, depth+1)
		}
		return out
	default:
		return v
	}
}
