package search

import "strings"

// SelectContexts keeps the contexts that mention equipmentName, compared
// case-insensitively. A blank name returns contexts unchanged. When nothing
// matches the result is empty; it never falls back to the unfiltered set.
func SelectContexts(contexts []string, equipmentName string) []string {
	name := strings.ToLower(strings.TrimSpace(equipmentName))
	if name == "" {
		return contexts
	}

	selected := make([]string, 0, len(contexts))
	for _, c := range contexts {
		if strings.Contains(strings.ToLower(c), name) {
			selected = append(selected, c)
		}
	}
	return selected
}
