package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/infrastructure/diagnostics"
)

const validBot = `async function processNotification(notification) {
  return { action: 'KEEP' };
}`

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator("", nil)
	require.NoError(t, err)
	return v
}

func TestValidatorAcceptsNamedDeclarations(t *testing.T) {
	v := newValidator(t)
	source := `function helper(x) { return x + 1; }
function processNotification(n) { return { action: 'REPLY', replyText: String(helper(1)) }; }`
	assert.True(t, v.Validate(source, nil))
	assert.True(t, v.Validate(validBot, nil))
}

func TestValidatorRejectsEmptyAndBlank(t *testing.T) {
	v := newValidator(t)
	for _, source := range []string{"", "   \n\t"} {
		outcome := v.Check(source)
		assert.False(t, outcome.Valid)
		assert.Equal(t, domain.RuleEmpty, outcome.Rule)
	}
}

func TestValidatorRejectsOversizedScript(t *testing.T) {
	v := newValidator(t)
	source := validBot + "\n//" + strings.Repeat("x", domain.MaxScriptBytes)
	outcome := v.Check(source)
	assert.False(t, outcome.Valid)
	assert.Equal(t, domain.RuleSize, outcome.Rule)
}

func TestValidatorMeasuresUTF8Bytes(t *testing.T) {
	v := newValidator(t)
	// 3 bytes per rune; fewer runes than the limit but more bytes.
	padding := strings.Repeat("€", domain.MaxScriptBytes/3+1)
	outcome := v.Check(validBot + "\n// " + padding)
	assert.Equal(t, domain.RuleSize, outcome.Rule)
}

func TestValidatorRejectsUnconditionalTokens(t *testing.T) {
	v := newValidator(t)
	cases := map[string]string{
		"eval":        `eval('1+1');`,
		"eval upper":  `EVAL ('x');`,
		"constructor": `[].constructor['x'];`,
		"proto":       `({}).__PROTO__.polluted = 1;`,
		"import":      `import('https://evil.example/mod.js');`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			source := "function processNotification(n) { " + body + " return { action: 'KEEP' }; }"
			outcome := v.Check(source)
			assert.False(t, outcome.Valid)
			assert.Equal(t, domain.RuleDenylist, outcome.Rule)
			assert.GreaterOrEqual(t, outcome.Offset, 0)
			assert.Contains(t, outcome.Snippet, ">>>")
		})
	}
}

func TestValidatorRejectsFunctionConstructor(t *testing.T) {
	v := newValidator(t)
	cases := []string{
		`var f = Function("return 1");`,
		`var f = new Function("return 1");`,
		`var f = NEW   function ("return 1");`,
	}
	for _, body := range cases {
		source := "function processNotification(n) { " + body + " return { action: 'KEEP' }; }"
		outcome := v.Check(source)
		assert.False(t, outcome.Valid, body)
		assert.Equal(t, domain.RuleDenylist, outcome.Rule, body)
	}
}

// The heuristic is lexical: anonymous function expressions are rejected and
// unusual formatting can evade it. These cases document that behaviour.
func TestValidatorFunctionHeuristicLimits(t *testing.T) {
	v := newValidator(t)

	anonymous := "function processNotification(n) { [1].map(function (x) { return x; }); return { action: 'KEEP' }; }"
	assert.False(t, v.Validate(anonymous, nil))

	evasive := "function processNotification(n) { var F = (function(){}).constructor; return { action: 'KEEP' }; }"
	assert.False(t, v.Validate(evasive, nil), "anonymous wrapper still trips the rule")

	spaced := "function processNotification(n) { var C = Object.getPrototypeOf(async () => {}).constructor; return { action: 'KEEP' }; }"
	assert.True(t, v.Validate(spaced, nil), "constructor lookup without brackets is not detected")
}

func TestValidatorIgnoresMentionsInComments(t *testing.T) {
	v := newValidator(t)
	source := "// This comment mentions eval but it's not code\n" + validBot
	assert.True(t, v.Validate(source, nil))
}

func TestValidatorRequiresEntryPoint(t *testing.T) {
	v := newValidator(t)
	outcome := v.Check("function otherFunction() { return 'test'; }")
	assert.False(t, outcome.Valid)
	assert.Equal(t, domain.RuleEntryPoint, outcome.Rule)
	assert.Equal(t, -1, outcome.Offset)
}

func TestValidatorRuleOrder(t *testing.T) {
	v := newValidator(t)
	// Denylisted and missing entry point: the denylist is reported first.
	outcome := v.Check("eval('x')")
	assert.Equal(t, domain.RuleDenylist, outcome.Rule)
}

func TestValidatorWritesDiagnostics(t *testing.T) {
	v := newValidator(t)
	capture := diagnostics.NewCapture(10)
	capture.Enable()

	ok := v.Validate("function processNotification(n) { eval('1'); }", capture)
	require.False(t, ok)

	entries := capture.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0].Level)
	assert.Contains(t, entries[0].Message, "denylist")
	assert.Contains(t, entries[0].Message, ">>>eval(<<<")
}

func TestValidatorLoadsExtraRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	rules := "rules:\n  danger_patterns:\n    - pattern: 'while\\s*\\(\\s*true'\n      message: busy loop\n"
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o600))

	v, err := NewValidator(path, nil)
	require.NoError(t, err)

	outcome := v.Check("function processNotification(n) { WHILE (true) {} }")
	assert.False(t, outcome.Valid)
	assert.Equal(t, "busy loop", outcome.Message)

	// Built-in rules stay active.
	assert.False(t, v.Validate("function processNotification(n) { eval('x') }", nil))
}

func TestValidatorMissingRulesFileUsesBuiltins(t *testing.T) {
	v, err := NewValidator(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	assert.True(t, v.Validate(validBot, nil))
}

func TestValidatorRejectsBadRulePattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  danger_patterns:\n    - pattern: '('\n"), 0o600))
	_, err := NewValidator(path, nil)
	assert.Error(t, err)
}

func TestSnippetKeepsRuneBoundaries(t *testing.T) {
	source := strings.Repeat("é", 30) + "eval(" + strings.Repeat("ü", 30)
	start := strings.Index(source, "eval(")
	got := snippet(source, start, start+5)
	assert.True(t, strings.Contains(got, ">>>eval(<<<"))
	assert.True(t, utf8Valid(got))
}

func utf8Valid(s string) bool {
	return strings.ToValidUTF8(s, "?") == s
}
