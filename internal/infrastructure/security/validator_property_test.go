//go:build property
// +build property

package security

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/doeshing/replybot/internal/domain"
)

func TestValidatorProperties(t *testing.T) {
	v, err := NewValidator("", nil)
	if err != nil {
		t.Fatal(err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("oversized scripts are rejected", prop.ForAll(
		func(extra int) bool {
			source := "function processNotification(n) {}\n//" + strings.Repeat("a", domain.MaxScriptBytes+extra)
			return !v.Validate(source, nil)
		},
		gen.IntRange(0, 4096),
	))

	properties.Property("denylisted tokens are rejected in any case", prop.ForAll(
		func(prefix, suffix string, token string, upper bool) bool {
			if upper {
				token = strings.ToUpper(token)
			}
			source := "function processNotification(n) { " + prefix + " " + token + " " + suffix + " }"
			return !v.Validate(source, nil)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.OneConstOf("eval(", "__proto__", "constructor[", "import(", "Function(", "new Function("),
		gen.Bool(),
	))

	properties.Property("scripts without the entry point are rejected", prop.ForAll(
		func(body string) bool {
			if strings.Contains(body, domain.EntryPoint) {
				return true
			}
			return !v.Validate("function main() { "+body+" }", nil)
		},
		gen.AlphaString(),
	))

	properties.Property("named declarations are accepted", prop.ForAll(
		func(name string) bool {
			lower := strings.ToLower(name)
			if name == "" || strings.HasSuffix(lower, "eval") || strings.HasSuffix(lower, "import") {
				return true
			}
			source := "function " + name + "() { return 1; }\nfunction processNotification(n) { return { action: 'KEEP' }; }"
			return v.Validate(source, nil)
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
