// Package caption asks a vision model for short photo captions and event
// blurbs. Every failure degrades to a fixed default; callers never see an error.
package caption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"snapify/pkg/logger"
	"snapify/pkg/utils"
)

const (
	DefaultCaption     = "Captured moment"
	DefaultDescription = "Join us for an amazing celebration!"

	maxCaptionLen = 120
)

type Captioner interface {
	Caption(ctx context.Context, image []byte) string
	Describe(ctx context.Context, title, date, eventType string) string
}

// Static always answers with the defaults. Used when no API key is configured.
type Static struct{}

func (Static) Caption(context.Context, []byte) string               { return DefaultCaption }
func (Static) Describe(context.Context, string, string, string) string { return DefaultDescription }

// completer is the slice of the go-openai client we use.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	MaxSide int
}

type OpenAICaptioner struct {
	client  completer
	model   string
	timeout time.Duration
	maxSide int
	log     *logger.Logger
}

func NewOpenAI(opts Options) *OpenAICaptioner {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return newOpenAI(openai.NewClientWithConfig(cfg), opts)
}

func newOpenAI(client completer, opts Options) *OpenAICaptioner {
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxSide <= 0 {
		opts.MaxSide = 768
	}
	return &OpenAICaptioner{
		client:  client,
		model:   opts.Model,
		timeout: opts.Timeout,
		maxSide: opts.MaxSide,
		log:     logger.Named("caption"),
	}
}

func (c *OpenAICaptioner) Caption(ctx context.Context, image []byte) string {
	small, err := utils.FitJPEG(image, c.maxSide, 80)
	if err != nil {
		c.log.Warn("cannot prepare image: %v", err)
		return DefaultCaption
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(small)
	text, err := c.complete(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: "Write a short, warm caption (max 10 words) for this photo from a party or event. Reply with the caption only.",
			},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailLow},
			},
		},
	}, 40)
	if err != nil {
		c.log.Warn("caption request failed: %v", err)
		return DefaultCaption
	}
	return text
}

func (c *OpenAICaptioner) Describe(ctx context.Context, title, date, eventType string) string {
	prompt := fmt.Sprintf(
		"Write a catchy, short (max 2 sentences) description for a %s event titled %q happening on %s.",
		eventType, title, date,
	)
	text, err := c.complete(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	}, 80)
	if err != nil {
		c.log.Warn("description request failed: %v", err)
		return DefaultDescription
	}
	return text
}

func (c *OpenAICaptioner) complete(ctx context.Context, msg openai.ChatCompletionMessage, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []openai.ChatCompletionMessage{msg},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}

	text := clean(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("blank completion")
	}
	return text, nil
}

// clean strips the quotes models like to wrap captions in and caps the length.
func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'“”")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxCaptionLen {
		s = strings.TrimSpace(string(r[:maxCaptionLen]))
	}
	return s
}
