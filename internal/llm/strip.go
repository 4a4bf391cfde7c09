package llm

import "regexp"

// Reasoning-capable models emit their chain of thought between these
// markers; it must never reach callers.
var reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>\n*`)

// StripReasoning removes <think>...</think> blocks from generated text.
// An unterminated block is left in place rather than deleting to the end of
// the answer.
func StripReasoning(s string) string {
	return reasoningBlock.ReplaceAllString(s, "")
}
