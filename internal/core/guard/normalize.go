package guard

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// DefaultGroupPrefix is stripped from group names when deriving context labels.
const DefaultGroupPrefix = "AzureDevOps"

// Logger is the subset of the structured logger the guard writes to.
type Logger interface {
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// Normalize translates a backend failure into a *Failure. Errors that carry
// the BackendError marker become backend_reported, everything else becomes
// unexpected. An error that is itself a *Failure is returned as-is; a
// *Failure wrapped with more context is normalized like any other error.
func Normalize(op Operation, prefix string, err error) *Failure {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*Failure); ok && existing != nil {
		return existing
	}

	label := ContextLabel(op.Group, prefix)
	words := OperationWords(op.Name)

	failure := &Failure{
		Operation: op.Name,
		Group:     op.Group,
		Context:   label,
		Err:       err,
	}

	var backendErr BackendError
	if errors.As(err, &backendErr) && backendErr.BackendReported() {
		failure.Kind = KindBackendReported
		failure.Message = fmt.Sprintf("Failed to %s%s: %s", words, label, err.Error())
	} else {
		failure.Kind = KindUnexpected
		failure.Message = fmt.Sprintf("Unexpected error in %s%s: %s", words, label, err.Error())
	}
	return failure
}

// OperationWords renders an operation name for messages: list_work_items
// becomes "list work items".
func OperationWords(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// ContextLabel derives " in <words>" from a group name carrying prefix, so
// AzureDevOpsWorkItems yields " in work items". Groups without the prefix
// produce no label.
func ContextLabel(group, prefix string) string {
	if prefix == "" {
		prefix = DefaultGroupPrefix
	}
	if group == "" || !strings.HasPrefix(group, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(group, prefix)
	if rest == "" {
		return ""
	}
	return " in " + strings.ToLower(splitCamel(rest))
}

func splitCamel(value string) string {
	runes := []rune(value)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func logNormalized(logger Logger, failure *Failure) {
	if logger == nil || failure == nil {
		return
	}
	original := ""
	if failure.Err != nil {
		original = failure.Err.Error()
	}
	msg := "Unexpected error in " + failure.Operation
	if failure.Kind == KindBackendReported {
		msg = "Azure DevOps API error in " + failure.Operation
	}
	logger.Error(msg,
		zap.String("operation", failure.Operation),
		zap.String("group", failure.Group),
		zap.String("kind", string(failure.Kind)),
		zap.String("error", original))
}
