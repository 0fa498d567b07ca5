// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package prompt assembles the completion prompt for a technician question.
//
// Two templates exist. The grounded template embeds retrieved documentation
// snippets; the ungrounded template tells the model no documentation was
// found. Both carry the same persona, style rules and equipment-focus
// directives, and both end with the raw user input followed by a reminder.
package prompt

import (
	"fmt"
	"strings"

	"github.com/poiesic/wrench/core"
)

// MaxHistoryTurns bounds how many recent turns are rendered into the prompt.
const MaxHistoryTurns = 6

// Build renders the prompt. It is pure: identical inputs give identical output.
// A blank equipmentName is treated as absent.
func Build(query string, history []core.ConversationTurn, contexts []string, equipmentName string) string {
	name := strings.TrimSpace(equipmentName)
	grounded := len(contexts) > 0

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(guidelinesHeader)
	b.WriteByte('\n')
	if name != "" {
		tail := ""
		if grounded {
			tail = " or providing help"
		}
		fmt.Fprintf(&b, focusSelected, name, tail)
	} else {
		b.WriteString(focusUnselected)
	}
	b.WriteByte('\n')
	b.WriteString(styleRules)
	b.WriteString("\n\n")

	if grounded {
		b.WriteString(groundedHeader)
		b.WriteByte('\n')
		b.WriteString(strings.Join(contexts, ContextSeparator))
	} else {
		about := ""
		if name != "" {
			about = " about " + name
		}
		fmt.Fprintf(&b, ungroundedNote, about)
	}
	b.WriteString("\n\n")

	if name != "" {
		fmt.Fprintf(&b, currentSelected, name)
	} else {
		b.WriteString(currentUnselected)
	}
	b.WriteString("\n\n")

	if turns := recent(history); len(turns) > 0 {
		b.WriteString(historyHeader)
		b.WriteByte('\n')
		for _, turn := range turns {
			fmt.Fprintf(&b, "%s: %s\n", speaker(turn.Role), turn.Content)
		}
		b.WriteByte('\n')
	}

	b.WriteString("User input: ")
	b.WriteString(query)
	b.WriteString("\n\n")

	if name != "" {
		fmt.Fprintf(&b, reminderSelected, name)
	} else {
		b.WriteString(reminderUnselected)
	}
	return b.String()
}

func recent(history []core.ConversationTurn) []core.ConversationTurn {
	if len(history) > MaxHistoryTurns {
		return history[len(history)-MaxHistoryTurns:]
	}
	return history
}

func speaker(role core.Role) string {
	if role == core.RoleAssistant {
		return "Technician"
	}
	return "User"
}
