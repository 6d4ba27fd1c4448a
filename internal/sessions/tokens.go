package sessions

import (
	"fmt"
	"strings"
	"sync"

	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/rs/zerolog/log"
)

// DefaultEncoding is the BPE vocabulary used to bound chat histories.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// BPECounter counts tokens with a tiktoken vocabulary. The vocabulary is
// embedded in the binary, so no network access is needed.
type BPECounter struct {
	enc *tiktoken.Tiktoken
}

// NewBPECounter loads the named encoding.
func NewBPECounter(encoding string) (*BPECounter, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &BPECounter{enc: enc}, nil
}

func (c *BPECounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// wordCounter is the degraded path when no vocabulary can be loaded.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// DefaultCounter returns the shared DefaultEncoding counter, or a word
// counter when the encoding cannot be loaded.
var DefaultCounter = sync.OnceValue(func() contracts.TokenCounter {
	c, err := NewBPECounter(DefaultEncoding)
	if err != nil {
		log.Warn().Err(err).Msg("BPE vocabulary unavailable, counting words")
		return wordCounter{}
	}
	return c
})
