// Package llmtest provides a scripted contracts.LLM for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

// LLM replays scripted replies and records every call it receives.
//
// Replies are consumed in order and the last one repeats. When Respond is
// set it takes precedence over Replies.
type LLM struct {
	Replies []string
	Respond func(messages []models.ChatMessage) (string, error)
	Err     error

	mu      sync.Mutex
	next    int
	calls   [][]models.ChatMessage
	prompts []string
	images  [][]string
}

// New returns an LLM that answers with replies in order.
func New(replies ...string) *LLM {
	return &LLM{Replies: replies}
}

// Func returns an LLM whose answer is computed from the messages.
func Func(fn func(messages []models.ChatMessage) (string, error)) *LLM {
	return &LLM{Respond: fn}
}

func (l *LLM) reply(messages []models.ChatMessage) (*contracts.Completion, error) {
	l.mu.Lock()
	l.calls = append(l.calls, append([]models.ChatMessage(nil), messages...))
	if l.Err != nil {
		l.mu.Unlock()
		return nil, l.Err
	}
	respond := l.Respond
	var text string
	if respond == nil && len(l.Replies) > 0 {
		i := l.next
		if i >= len(l.Replies) {
			i = len(l.Replies) - 1
		} else {
			l.next++
		}
		text = l.Replies[i]
	}
	l.mu.Unlock()

	if respond != nil {
		var err error
		if text, err = respond(messages); err != nil {
			return nil, err
		}
	}

	in := 0
	for _, m := range messages {
		in += len(strings.Fields(m.Content))
	}
	return &contracts.Completion{Content: text, InputTokens: in, OutputTokens: len(strings.Fields(text))}, nil
}

// Chat returns the next scripted reply.
func (l *LLM) Chat(_ context.Context, messages []models.ChatMessage) (*contracts.Completion, error) {
	return l.reply(messages)
}

// StreamChat emits the next scripted reply word by word, preserving spaces,
// so that the concatenated deltas equal the buffered answer.
func (l *LLM) StreamChat(_ context.Context, messages []models.ChatMessage, onDelta contracts.DeltaFunc) (*contracts.Completion, error) {
	c, err := l.reply(messages)
	if err != nil {
		return nil, err
	}
	for _, d := range Split(c.Content) {
		if err := onDelta(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Complete records the prompt and images and returns the next reply.
func (l *LLM) Complete(_ context.Context, prompt string, images []string) (*contracts.Completion, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.images = append(l.images, images)
	l.mu.Unlock()
	return l.reply([]models.ChatMessage{{Role: models.RoleUser, Content: prompt}})
}

// Calls returns the message lists received so far.
func (l *LLM) Calls() [][]models.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]models.ChatMessage(nil), l.calls...)
}

// CallCount returns the number of completions requested.
func (l *LLM) CallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

// Images returns the image lists passed to Complete.
func (l *LLM) Images() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]string(nil), l.images...)
}

// LastUser returns the content of the last user message of the most recent
// call, or "" when nothing was called.
func (l *LLM) LastUser() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.calls) == 0 {
		return ""
	}
	msgs := l.calls[len(l.calls)-1]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// Split cuts text into word deltas that concatenate back to text.
func Split(text string) []string {
	var out []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] == ' ' {
			out = append(out, text[start:i])
			start = i
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
