package strategies

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/pkg/models"
)

const selectorPrompt = `Some choices are given below. It is provided in a numbered list (1 to %d), where each item in the list corresponds to a summary.
---------------------
%s---------------------
Using only the choices above and not prior knowledge, return the number of the choice that is most relevant to the question: '%s'
Answer with the number only.`

var choiceNumber = regexp.MustCompile(`\d+`)

// Router picks one of a router project's entrances. It never answers the
// question itself.
type Router struct{ base }

// NewRouter creates the router strategy.
func NewRouter(b *brain.Brain) *Router { return &Router{base{brain: b}} }

// Route returns the destination project of the entrance the LLM selects.
func (s *Router) Route(ctx context.Context, p *project.Project, question string) (string, error) {
	if len(p.Entrances) == 0 {
		return "", fmt.Errorf("router %s has no entrances", p.Name)
	}
	llm, err := s.llm(ctx, p)
	if err != nil {
		return "", err
	}

	var choices strings.Builder
	for i, e := range p.Entrances {
		fmt.Fprintf(&choices, "(%d) %s: %s\n\n", i+1, e.Name, e.Description)
	}
	c, err := llm.Chat(ctx, []models.ChatMessage{
		userMessage(fmt.Sprintf(selectorPrompt, len(p.Entrances), choices.String(), question)),
	})
	if err != nil {
		return "", err
	}

	i, err := ParseChoice(c.Content, len(p.Entrances))
	if err != nil {
		return "", fmt.Errorf("router %s: %w", p.Name, err)
	}
	return p.Entrances[i].Destination, nil
}

// ParseChoice reads the first number in reply as a 1-based choice and
// returns its 0-based index.
func ParseChoice(reply string, n int) (int, error) {
	m := choiceNumber.FindString(reply)
	if m == "" {
		return 0, fmt.Errorf("selector reply has no choice: %q", reply)
	}
	choice, err := strconv.Atoi(m)
	if err != nil || choice < 1 || choice > n {
		return 0, fmt.Errorf("selector choice %s out of range 1..%d", m, n)
	}
	return choice - 1, nil
}
