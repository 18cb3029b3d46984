package domain

import "fmt"

// MaxScriptBytes bounds the UTF-8 size of a bot script.
const MaxScriptBytes = 100 * 1024

// Rule names a validator check.
type Rule string

const (
	RuleEmpty      Rule = "empty"
	RuleSize       Rule = "size"
	RuleDenylist   Rule = "denylist"
	RuleEntryPoint Rule = "entry_point"
)

// ValidationOutcome is the verdict of a static check. Offset is -1 when the
// failing rule is not pattern based.
type ValidationOutcome struct {
	Valid   bool
	Rule    Rule
	Pattern string
	Message string
	Offset  int
	Snippet string
}

// Diagnostic renders the outcome for logs and debug capture.
func (o ValidationOutcome) Diagnostic() string {
	if o.Valid {
		return "valid"
	}
	if o.Offset >= 0 {
		return fmt.Sprintf("%s: %s at byte %d: %s", o.Rule, o.Message, o.Offset, o.Snippet)
	}
	return fmt.Sprintf("%s: %s", o.Rule, o.Message)
}
