// Package guardrails evaluates a project's heuristic input rules. They run
// ahead of the LLM guard and block without a model call.
//
// Rule kinds and their config:
//   - content_filter: {"blocked_words": [...], "case_sensitive": false}
//   - pii_detection: {"patterns": ["email","phone","ssn","credit_card"]}, empty means all
//   - regex_filter: {"pattern": "...", "block_on_match": true}
//   - max_length: {"max_characters": N, "max_words": N}
//   - prompt_injection: {"sensitivity": "low"|"medium"|"high"}
package guardrails

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/agentoven/ragserve/pkg/models"
)

type checker func(cfg map[string]interface{}, text string) (blocked bool, reason string)

var checkers = map[models.GuardrailKind]checker{
	models.GuardrailContentFilter:   contentFilter,
	models.GuardrailPII:             piiDetection,
	models.GuardrailRegexFilter:     regexFilter,
	models.GuardrailMaxLength:       maxLength,
	models.GuardrailPromptInjection: promptInjection,
}

// Evaluate runs every rule against text. It stops at the first failing rule
// and returns the results gathered so far. Unknown kinds pass.
func Evaluate(rules []models.Guardrail, text string) (bool, []models.GuardrailResult) {
	results := make([]models.GuardrailResult, 0, len(rules))
	for _, g := range rules {
		check, ok := checkers[g.Kind]
		if !ok {
			results = append(results, models.GuardrailResult{Kind: g.Kind, Passed: true, Message: "unknown guardrail kind"})
			continue
		}
		blocked, reason := check(g.Config, text)
		results = append(results, models.GuardrailResult{Kind: g.Kind, Passed: !blocked, Message: reason})
		if blocked {
			return false, results
		}
	}
	return true, results
}

// ── Content Filter ──────────────────────────────────────────

func contentFilter(cfg map[string]interface{}, text string) (bool, string) {
	caseSensitive, _ := cfg["case_sensitive"].(bool)
	if !caseSensitive {
		text = strings.ToLower(text)
	}
	for _, word := range stringList(cfg, "blocked_words") {
		if !caseSensitive {
			word = strings.ToLower(word)
		}
		if word != "" && strings.Contains(text, word) {
			return true, "blocked content: contains a prohibited word or phrase"
		}
	}
	return false, ""
}

// ── PII Detection ───────────────────────────────────────────

var piiPatterns = map[string]*regexp.Regexp{
	"email":       regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	"phone":       regexp.MustCompile(`(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
	"ssn":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"credit_card": regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
}

var piiOrder = []string{"email", "ssn", "credit_card", "phone"}

func piiDetection(cfg map[string]interface{}, text string) (bool, string) {
	names := stringList(cfg, "patterns")
	if len(names) == 0 {
		names = piiOrder
	}
	for _, name := range names {
		if re, ok := piiPatterns[name]; ok && re.MatchString(text) {
			return true, "PII detected: " + name
		}
	}
	return false, ""
}

// ── Regex Filter ────────────────────────────────────────────

var compiled sync.Map // pattern -> *regexp.Regexp

func regexFilter(cfg map[string]interface{}, text string) (bool, string) {
	pattern, _ := cfg["pattern"].(string)
	if pattern == "" {
		return false, ""
	}
	var re *regexp.Regexp
	if v, ok := compiled.Load(pattern); ok {
		re = v.(*regexp.Regexp)
	} else {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return false, "invalid regex pattern: " + err.Error()
		}
		compiled.Store(pattern, re)
	}

	blockOnMatch := true
	if b, ok := cfg["block_on_match"].(bool); ok {
		blockOnMatch = b
	}
	matched := re.MatchString(text)
	switch {
	case matched && blockOnMatch:
		return true, "content matched a blocked pattern"
	case !matched && !blockOnMatch:
		return true, "content did not match the required pattern"
	}
	return false, ""
}

// ── Max Length ──────────────────────────────────────────────

func maxLength(cfg map[string]interface{}, text string) (bool, string) {
	if n, ok := intValue(cfg, "max_characters"); ok && n > 0 && utf8.RuneCountInString(text) > n {
		return true, "message exceeds the character limit"
	}
	if n, ok := intValue(cfg, "max_words"); ok && n > 0 && len(strings.Fields(text)) > n {
		return true, "message exceeds the word limit"
	}
	return false, ""
}

// ── Prompt Injection ────────────────────────────────────────

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?|directions?)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?|context)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`),
	regexp.MustCompile(`(?i)new\s+instructions?:\s*`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)\bdo\s+anything\s+now\b`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
}

var strictPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)override\s+(your|the|all)\s+`),
	regexp.MustCompile(`(?i)bypass\s+(your|the|all)\s+`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system\s+)?(prompt|instructions?)`),
	regexp.MustCompile(`(?i)what\s+(is|are)\s+your\s+(system\s+)?(prompt|instructions?|rules?)`),
}

func promptInjection(cfg map[string]interface{}, text string) (bool, string) {
	sensitivity, _ := cfg["sensitivity"].(string)
	if sensitivity == "low" {
		// Only the most explicit phrasing.
		if injectionPatterns[0].MatchString(text) {
			return true, "potential prompt injection"
		}
		return false, ""
	}
	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			return true, "potential prompt injection"
		}
	}
	if sensitivity == "high" {
		for _, re := range strictPatterns {
			if re.MatchString(text) {
				return true, "potential prompt injection (high sensitivity)"
			}
		}
	}
	return false, ""
}

// ── Helpers ─────────────────────────────────────────────────

func stringList(cfg map[string]interface{}, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// intValue reads an integer that JSON decoding may have turned into float64.
func intValue(cfg map[string]interface{}, key string) (int, bool) {
	switch n := cfg[key].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
