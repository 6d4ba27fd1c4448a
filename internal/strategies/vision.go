package strategies

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"github.com/agentoven/ragserve/internal/brain"
	"github.com/agentoven/ragserve/internal/jobs"
	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/pkg/contracts"
	"github.com/agentoven/ragserve/pkg/models"
)

// maxImageBytes bounds images fetched from URLs.
const maxImageBytes = 20 << 20

// Vision is a single multimodal completion over one image.
type Vision struct {
	base
	client *http.Client
}

// ErrBlockedAddress is returned when an image URL resolves to a loopback,
// private, link-local or unspecified address.
var ErrBlockedAddress = errors.New("image URL resolves to a non-public address")

// NewVision creates the vision strategy.
func NewVision(b *brain.Brain) *Vision {
	return &Vision{base: base{brain: b}, client: publicClient()}
}

// publicClient only dials public addresses. The check runs on the resolved
// IP at connect time, so redirects and DNS rebinding are covered. Proxies
// are disabled because the guard would only see the proxy's address.
func publicClient() *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: dialPublicOnly}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}

func dialPublicOnly(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !publicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ap.Addr())
	}
	return nil
}

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsUnspecified() &&
		!ip.IsMulticast()
}

// Question runs the completion on the GPU job queue under the vision
// class.
func (s *Vision) Question(ctx context.Context, p *project.Project, req models.QuestionRequest, emit contracts.DeltaFunc) (*models.InferenceOutput, error) {
	if blocked, err := s.blocked(ctx, p, req.Question); err != nil {
		return nil, err
	} else if blocked {
		return s.censored(p, req.Question, emit)
	}

	llm, err := s.llm(ctx, p)
	if err != nil {
		return nil, err
	}
	image, err := s.dataURI(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	prompt := VisionPrompt(req.Question, req.Negative)
	v, err := s.brain.Jobs.Submit(ctx, jobs.ClassVision, func(ctx context.Context) (interface{}, error) {
		return llm.Complete(ctx, prompt, []string{image})
	}).Wait(ctx)
	if err != nil {
		return nil, err
	}
	c := v.(*contracts.Completion)

	if err := send(emit, c.Content); err != nil {
		return nil, err
	}
	return &models.InferenceOutput{
		Question: req.Question,
		Type:     p.Type,
		Answer:   c.Content,
		Sources:  []models.Source{},
		Tokens:   tokensOf(c),
		Project:  p.Name,
	}, nil
}

// VisionPrompt appends the negative prompt, when given, as content the
// model must leave out of its answer.
func VisionPrompt(question, negative string) string {
	negative = strings.TrimSpace(negative)
	if negative == "" {
		return question
	}
	return question + "\n\nDo not include the following in your answer: " + negative
}

// dataURI normalizes an image given as a data URI, raw base64 or an
// http(s) URL into a data URI.
func (s *Vision) dataURI(ctx context.Context, image string) (string, error) {
	image = strings.TrimSpace(image)
	switch {
	case image == "":
		return "", fmt.Errorf("vision requires an image")
	case strings.HasPrefix(image, "data:"):
		return image, nil
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"):
		return s.fetch(ctx, image)
	}
	raw, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		return "", fmt.Errorf("image is neither a URL nor base64: %w", err)
	}
	return "data:" + http.DetectContentType(raw) + ";base64," + image, nil
}

func (s *Vision) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	mediaType := resp.Header.Get("Content-Type")
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = http.DetectContentType(data)
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
