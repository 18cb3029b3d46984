package security

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/pkg/filesystem"
	"github.com/doeshing/replybot/internal/ports"
)

const snippetRadius = 24

// Validator implements ports.ScriptValidator.
type Validator struct {
	patterns []compiledPattern
	logger   ports.Logger
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DangerPattern
	// allow inspects a match and reports whether it is a permitted form.
	allow func(source string, loc []int) bool
}

// DangerPattern describes a regex-based denylist rule. Patterns always match
// case-insensitively.
type DangerPattern struct {
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root for extra denylist rules.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerPattern `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

// functionPattern matches `function` optionally preceded by `new` and
// optionally followed by an identifier, up to the opening parenthesis.
// Submatch 1 is `new`, submatch 3 the identifier.
var functionPattern = regexp.MustCompile(`(?i)\b(?:(new)\s+)?(function)\b(\s*[A-Za-z_$][\w$]*)?\s*\(`)

// NewValidator builds the validator. Rules from rulesPath, when the file
// exists, are appended to the built-in denylist; they can never remove one.
func NewValidator(rulesPath string, logger ports.Logger) (*Validator, error) {
	patterns := builtinPatterns()

	extra, err := loadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	for _, rule := range extra {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", rule.Pattern, err)
		}
		patterns = append(patterns, compiledPattern{re: re, rule: rule})
	}
	return &Validator{patterns: patterns, logger: logger}, nil
}

// Validate reports whether source may be executed. Rejection details go to sink.
func (v *Validator) Validate(source string, sink ports.DiagnosticsSink) bool {
	outcome := v.Check(source)
	if outcome.Valid {
		return true
	}
	if sink != nil {
		sink.Record("error", "bot validation failed: "+outcome.Diagnostic())
	}
	if v.logger != nil {
		v.logger.Warn("bot validation failed", map[string]interface{}{
			"rule":   string(outcome.Rule),
			"offset": outcome.Offset,
		})
	}
	return false
}

// Check applies the rules in order and stops at the first failure.
func (v *Validator) Check(source string) domain.ValidationOutcome {
	if strings.TrimSpace(source) == "" {
		return reject(domain.RuleEmpty, "bot code is empty")
	}
	if size := len(source); size > domain.MaxScriptBytes {
		return reject(domain.RuleSize, fmt.Sprintf("bot too large: %d bytes (max: %d bytes)", size, domain.MaxScriptBytes))
	}
	for _, pattern := range v.patterns {
		for _, loc := range pattern.re.FindAllStringSubmatchIndex(source, -1) {
			if pattern.allow != nil && pattern.allow(source, loc) {
				continue
			}
			return domain.ValidationOutcome{
				Rule:    domain.RuleDenylist,
				Pattern: pattern.rule.Pattern,
				Message: pattern.rule.Message,
				Offset:  loc[0],
				Snippet: snippet(source, loc[0], loc[1]),
			}
		}
	}
	if !strings.Contains(source, domain.EntryPoint) {
		return reject(domain.RuleEntryPoint, "missing "+domain.EntryPoint+" function")
	}
	return domain.ValidationOutcome{Valid: true, Offset: -1}
}

func reject(rule domain.Rule, message string) domain.ValidationOutcome {
	return domain.ValidationOutcome{Rule: rule, Message: message, Offset: -1}
}

// namedDeclaration permits `function name(` and rejects `Function(` and `new Function(`.
// Anonymous `function (` expressions are rejected too; the heuristic is lexical
// and unusual spacing or formatting can still slip past it.
func namedDeclaration(source string, loc []int) bool {
	hasNew := loc[2] >= 0
	hasIdentifier := loc[6] >= 0 && strings.TrimSpace(source[loc[6]:loc[7]]) != ""
	return !hasNew && hasIdentifier
}

func builtinPatterns() []compiledPattern {
	unconditional := []DangerPattern{
		{Pattern: `eval\s*\(`, Message: "dynamic code evaluation"},
		{Pattern: `constructor\s*\[`, Message: "constructor access by index"},
		{Pattern: `__proto__`, Message: "prototype chain manipulation"},
		{Pattern: `import\s*\(`, Message: "dynamic module import"},
	}
	patterns := make([]compiledPattern, 0, len(unconditional)+1)
	for _, rule := range unconditional {
		patterns = append(patterns, compiledPattern{
			re:   regexp.MustCompile("(?i)" + rule.Pattern),
			rule: rule,
		})
	}
	return append(patterns, compiledPattern{
		re:    functionPattern,
		rule:  DangerPattern{Pattern: `Function\s*\(`, Message: "dynamic function construction"},
		allow: namedDeclaration,
	})
}

func loadRules(path string) ([]DangerPattern, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filesystem.ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse validator rules: %w", err)
	}
	return rules.Rules.DangerPatterns, nil
}

// snippet returns the text around [start,end) with the match wrapped in >>> <<<.
func snippet(source string, start, end int) string {
	from := start - snippetRadius
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(source[from]) {
		from--
	}
	to := end + snippetRadius
	if to > len(source) {
		to = len(source)
	}
	for to < len(source) && !utf8.RuneStart(source[to]) {
		to++
	}
	out := source[from:start] + ">>>" + source[start:end] + "<<<" + source[end:to]
	return strings.Join(strings.Fields(out), " ")
}

var _ ports.ScriptValidator = (*Validator)(nil)
