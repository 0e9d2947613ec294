// Package skills implements the stateless LLM-facing units of the
// negotiation: demand formulation, offer generation, center coordination,
// discovery dialogues and gap recursion. Skills build prompts, call their
// collaborator (agent adapter or platform LLM) and validate the output,
// degrading to sensible defaults where the model strays from the contract.
package skills

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SkillError reports invalid skill input or output that could not be
// salvaged by the skill's degraded parsing path.
type SkillError struct {
	Skill string
	Msg   string
	Err   error
}

func (e *SkillError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skill %s: %s: %v", e.Skill, e.Msg, e.Err)
	}
	return fmt.Sprintf("skill %s: %s", e.Skill, e.Msg)
}

func (e *SkillError) Unwrap() error { return e.Err }

func newSkillError(skill, format string, args ...any) *SkillError {
	return &SkillError{Skill: skill, Msg: fmt.Sprintf(format, args...)}
}

// HistoryEntry is one free-form record of what happened in a previous
// synthesis round (agent replies, tool results, sub-demands).
type HistoryEntry map[string]any

var (
	cjkPattern       = regexp.MustCompile(`[\x{4e00}-\x{9fff}\x{3040}-\x{30ff}\x{ac00}-\x{d7af}]`)
	codeFencePattern = regexp.MustCompile(`(?s)^` + "```" + `(?:json)?\s*\n?(.*?)\n?\s*` + "```" + `$`)
	thinkTagPattern  = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)
)

// detectCJK reports whether the text contains Chinese, Japanese or Korean
// characters. It selects the prompt language for bilingual skills.
func detectCJK(text string) bool {
	return cjkPattern.MatchString(text)
}

// stripCodeFence removes a single surrounding markdown code fence, with or
// without a "json" language tag.
func stripCodeFence(text string) string {
	stripped := strings.TrimSpace(text)
	if m := codeFencePattern.FindStringSubmatch(stripped); m != nil {
		return strings.TrimSpace(m[1])
	}
	return stripped
}

// stripThinkTags drops <think>...</think> reasoning blocks some models
// prepend to their answer.
func stripThinkTags(text string) string {
	return thinkTagPattern.ReplaceAllString(text, "")
}

// profileJSON renders a profile map for prompt embedding.
func profileJSON(profile map[string]any) string {
	if len(profile) == 0 {
		return "(no profile data)"
	}
	raw, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "(no profile data)"
	}
	return string(raw)
}
