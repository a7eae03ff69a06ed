// Package persona assembles an agent's system prompt from its soul file
// and the person context that describes who it schedules for.
package persona

import (
	"fmt"
	"os"
	"strings"
)

// defaultSoul is used when no soul file is configured. It keeps a bare
// agent useful out of the box.
const defaultSoul = `You are a personal scheduling agent. You negotiate meeting times on
behalf of your person.

Rules:
- Always check the calendar before proposing or accepting a time.
- Use get_free_slots to find alternatives when a requested time is busy.
- Only book a meeting once all participants have agreed to the time.
- When another agent proposes a time that conflicts, reply with concrete
  alternatives instead of a plain refusal.
- Keep replies short and specific: dates, times, and a clear yes or no.`

// Load builds the system prompt. Either path may be empty; a missing
// soul falls back to the built-in default, a missing context is omitted.
func Load(soulPath, contextPath string) (string, error) {
	soul := defaultSoul
	if soulPath != "" {
		data, err := os.ReadFile(soulPath)
		if err != nil {
			return "", fmt.Errorf("failed to read soul file: %w", err)
		}
		soul = strings.TrimSpace(string(data))
	}

	if contextPath == "" {
		return soul, nil
	}
	data, err := os.ReadFile(contextPath)
	if err != nil {
		return "", fmt.Errorf("failed to read person context: %w", err)
	}
	personCtx := strings.TrimSpace(string(data))
	if personCtx == "" {
		return soul, nil
	}
	return fmt.Sprintf("%s\n\n## Person Context\n%s", soul, personCtx), nil
}
