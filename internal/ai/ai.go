// Package ai provides a completion provider backed by the Anthropic
// messages API.
//
// It fills the same provider contract as the engine subprocess: buffer and
// cursor in, ordered candidates out. The model is asked for a strict JSON
// array using the engine's candidate field names, so the response parser is
// shared in spirit with the engine codec. Network latency makes this
// provider a poor fit for per-keystroke popups; it exists for hosts that
// trigger omni-completion explicitly.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/dshills/omnicomplete/internal/complete"
	"github.com/dshills/omnicomplete/internal/text"
)

// Defaults for the AI provider.
const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 1024
	// DefaultWindow is how many lines around the cursor are sent.
	DefaultWindow = 60
)

const systemPrompt = `You are a code-completion engine. Given source code and a cursor position, reply with ONLY a JSON array of completion candidates, no prose and no code fences. Each candidate is an object with string fields: "complete" (text to insert), "str" (display label), "description" (short inline detail), "help" (longer documentation), "type" (category such as function, module, keyword, statement). Order candidates by relevance. Reply [] if nothing fits.`

// Provider implements complete.Provider against the Anthropic API.
type Provider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	window    int
}

// Option configures the provider.
type Option func(*Provider)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens sets the response token budget.
func WithMaxTokens(n int64) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithWindow sets how many lines around the cursor are included in the
// prompt. Zero sends the whole buffer.
func WithWindow(lines int) Option {
	return func(p *Provider) {
		p.window = lines
	}
}

// New creates a provider. An empty apiKey defers to the SDK's environment
// lookup.
func New(apiKey string, opts ...Option) *Provider {
	var reqOpts []option.RequestOption
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}

	p := &Provider{
		client:    anthropic.NewClient(reqOpts...),
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		window:    DefaultWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Complete implements complete.Provider.
func (p *Provider) Complete(ctx context.Context, source string, row, col int) ([]complete.Candidate, error) {
	prompt := buildPrompt(source, row, col, p.window)

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return parseCandidates(sb.String())
}

// buildPrompt renders the buffer window and cursor position for the model.
func buildPrompt(source string, row, col, window int) string {
	idx := text.NewLineIndex(source)

	body := source
	firstRow := 1
	if window > 0 {
		half := window / 2
		body = idx.Window(row, half, half)
		firstRow = idx.ClampRow(row) - half
		if firstRow < 1 {
			firstRow = 1
		}
	}

	var sb strings.Builder
	sb.WriteString("Cursor is at line ")
	fmt.Fprintf(&sb, "%d, byte column %d", idx.ClampRow(row)-firstRow+1, col)
	sb.WriteString(" of the following source (1-based lines):\n\n")
	sb.WriteString(body)
	return sb.String()
}

// parseCandidates decodes the model reply into candidates. Models sometimes
// fence JSON despite instructions, so fences are stripped before parsing.
func parseCandidates(reply string) ([]complete.Candidate, error) {
	cleaned := stripFences(strings.TrimSpace(reply))

	parsed := gjson.Parse(cleaned)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("model reply is not a JSON array: %.80q", cleaned)
	}

	var candidates []complete.Candidate
	parsed.ForEach(func(_, item gjson.Result) bool {
		candidates = append(candidates, complete.Candidate{
			Text:          item.Get("complete").String(),
			Display:       item.Get("str").String(),
			Detail:        item.Get("description").String(),
			Documentation: item.Get("help").String(),
			Kind:          item.Get("type").String(),
		})
		return true
	})
	return candidates, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
