package card

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alirezacodev/card-scanner/internal/logger"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrInvalidJSON is returned when the model reply cannot be parsed.
	ErrInvalidJSON = errors.New("model returned invalid JSON")
)

var fencedBlock = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the JSON object out of a model reply. A fenced code
// block wins; otherwise everything from the first '{' is used.
func ExtractJSON(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	if i := strings.Index(text, "{"); i >= 0 {
		return strings.TrimSpace(text[i:])
	}
	return strings.TrimSpace(text)
}

// ParseReply decodes and normalises a model reply.
func ParseReply(text string) (CarCardData, error) {
	if strings.TrimSpace(text) == "" {
		return CarCardData{}, ErrEmptyResponse
	}

	dec := json.NewDecoder(strings.NewReader(ExtractJSON(text)))
	dec.UseNumber()
	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return CarCardData{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return Normalize(parsed), nil
}

// Relay forwards a card image to a vision model and returns normalised fields.
type Relay struct {
	model       llms.Model
	provider    string
	modelName   string
	maxTokens   int
	inlineAsURL bool
}

// NewRelay wraps a langchaingo model. OpenAI-compatible providers receive the
// image as a data URL, the rest as binary content.
func NewRelay(model llms.Model, provider, modelName string, maxTokens int) *Relay {
	return &Relay{
		model:       model,
		provider:    provider,
		modelName:   modelName,
		maxTokens:   maxTokens,
		inlineAsURL: strings.EqualFold(provider, ProviderOpenAI),
	}
}

// Provider reports the configured provider name.
func (r *Relay) Provider() string {
	return r.provider
}

func (r *Relay) imagePart(image []byte, mimeType string) llms.ContentPart {
	if r.inlineAsURL {
		return llms.ImageURLPart("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image))
	}
	return llms.BinaryPart(mimeType, image)
}

// Extract sends one image and parses the reply.
func (r *Relay) Extract(ctx context.Context, image []byte, mimeType string) (CarCardData, error) {
	log := logger.WithFields(logrus.Fields{
		"provider":    r.provider,
		"model":       r.modelName,
		"image_bytes": len(image),
		"mime_type":   mimeType,
	})
	start := time.Now()

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemInstruction)},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(ExtractionPrompt),
				r.imagePart(image, mimeType),
			},
		},
	}

	opts := []llms.CallOption{llms.WithTemperature(0)}
	if r.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(r.maxTokens))
	}

	resp, err := r.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		log.WithError(err).Error("Vision model request failed")
		return CarCardData{}, fmt.Errorf("vision model request: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return CarCardData{}, ErrEmptyResponse
	}

	data, err := ParseReply(resp.Choices[0].Content)
	if err != nil {
		log.WithError(err).Warn("Vision model reply could not be parsed")
		return CarCardData{}, err
	}

	log.WithField("elapsed_ms", time.Since(start).Milliseconds()).Info("Card fields extracted")
	return data, nil
}
