package card

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestNormalize(t *testing.T) {
	input := map[string]interface{}{
		"vin":           "NAAM123456789",
		"engine_number": "۱۲۳۴۵",
		"model":         "405GLX-XU7-CNG",
		"year":          1398.0,
		"confidence": map[string]interface{}{
			"vin":           1.2,
			"engine_number": 0.9,
			"model":         0.6,
			"color":         -0.1,
			"year":          0.8,
			"extra":         0.8,
		},
		"raw_text":    "line one\nخط دوم",
		"extra_field": "ignored",
	}

	got := Normalize(input)

	assert.Equal(t, "NAAM123456789", got.VIN)
	assert.Equal(t, "۱۲۳۴۵", got.EngineNumber)
	assert.Equal(t, "405GLX-XU7-CNG", got.Model)
	assert.Equal(t, "", got.Color)
	assert.Equal(t, "", got.Year, "non-string values are dropped")
	assert.Equal(t, "line one\nخط دوم", got.RawText)

	assert.Equal(t, 1.0, got.Confidence["vin"])
	assert.Equal(t, 0.9, got.Confidence["engine_number"])
	assert.Equal(t, 0.6, got.Confidence["model"])
	assert.Equal(t, 0.0, got.Confidence["color"])
	assert.Equal(t, 0.0, got.Confidence["year"], "blank field forces zero confidence")
	assert.Equal(t, 0.0, got.Confidence["plate_number"])

	keys := make([]string, 0, len(got.Confidence))
	for k := range got.Confidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := append([]string(nil), FieldKeys...)
	sort.Strings(want)
	assert.Equal(t, want, keys)
}

func TestNormalize_JSONShape(t *testing.T) {
	raw, err := json.Marshal(Normalize(map[string]interface{}{"make": "Peugeot"}))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	want := append([]string{"confidence", "raw_text"}, FieldKeys...)
	sort.Strings(want)
	got := make([]string, 0, len(decoded))
	for k := range decoded {
		got = append(got, k)
	}
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func TestNormalize_NonObject(t *testing.T) {
	for _, in := range []interface{}{nil, "text", 12.0, []interface{}{"a"}} {
		got := Normalize(in)
		assert.Equal(t, Empty(), got)
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"in range", 0.42, 0.42},
		{"above", 3.0, 1},
		{"below", -2.0, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"numeric string", " 0.7 ", 0.7},
		{"bad string", "high", 0},
		{"empty string", "", 0},
		{"json number", json.Number("0.35"), 0.35},
		{"true", true, 1},
		{"false", false, 0},
		{"nil", nil, 0},
		{"object", map[string]interface{}{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, clampConfidence(tt.in), 1e-12)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"vin":"x"}`, `{"vin":"x"}`},
		{"fenced json", "Here you go:\n```json\n{\"vin\":\"x\"}\n```\nDone", `{"vin":"x"}`},
		{"fenced no tag", "```\n{\"vin\":\"x\"}\n```", `{"vin":"x"}`},
		{"upper case tag", "```JSON\n{\"a\":1}```", `{"a":1}`},
		{"leading prose", `Sure! {"vin":"x"}`, `{"vin":"x"}`},
		{"no object", "  nothing  ", "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestParseReply(t *testing.T) {
	data, err := ParseReply("```json\n{\"vin\":\"NAAM1234567890ABC\",\"confidence\":{\"vin\":0.95}}\n```")
	require.NoError(t, err)
	assert.Equal(t, "NAAM1234567890ABC", data.VIN)
	assert.Equal(t, 0.95, data.Confidence["vin"])

	_, err = ParseReply("   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = ParseReply("I cannot read this image")
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.options)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestRelay_Extract_OpenAIUsesDataURL(t *testing.T) {
	m := &fakeModel{reply: `{"vin":"NAAM1234567890ABC","color":"سفید","confidence":{"vin":0.9,"color":0.7}}`}
	r := NewRelay(m, ProviderOpenAI, "gpt-4o-mini", 0)

	data, err := r.Extract(context.Background(), []byte{1, 2, 3}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "NAAM1234567890ABC", data.VIN)
	assert.Equal(t, "سفید", data.Color)
	assert.Equal(t, 0.7, data.Confidence["color"])

	require.Len(t, m.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0].Role)
	human := m.messages[1]
	assert.Equal(t, llms.ChatMessageTypeHuman, human.Role)
	require.Len(t, human.Parts, 2)
	assert.Equal(t, llms.TextContent{Text: ExtractionPrompt}, human.Parts[0])
	img, ok := human.Parts[1].(llms.ImageURLContent)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AQID", img.URL)
	assert.Equal(t, 0.0, m.options.Temperature)
}

func TestRelay_Extract_OtherProvidersUseBinary(t *testing.T) {
	m := &fakeModel{reply: `{}`}
	r := NewRelay(m, ProviderGemini, "gemini-2.5-flash", 1024)

	_, err := r.Extract(context.Background(), []byte{9}, "image/jpeg")
	require.NoError(t, err)

	bin, ok := m.messages[1].Parts[1].(llms.BinaryContent)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", bin.MIMEType)
	assert.Equal(t, []byte{9}, bin.Data)
	assert.Equal(t, 1024, m.options.MaxTokens)
}

func TestRelay_Extract_Errors(t *testing.T) {
	_, err := NewRelay(&fakeModel{err: errors.New("quota")}, ProviderOpenAI, "m", 0).
		Extract(context.Background(), []byte{1}, "image/png")
	assert.ErrorContains(t, err, "quota")

	_, err = NewRelay(&fakeModel{reply: "not json"}, ProviderOpenAI, "m", 0).
		Extract(context.Background(), []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = NewRelay(&fakeModel{reply: ""}, ProviderOpenAI, "m", 0).
		Extract(context.Background(), []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewModel_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr string
	}{
		{"openai without key", ProviderConfig{Provider: "openai"}, "missing OPENAI_API_KEY"},
		{"default provider without key", ProviderConfig{}, "missing OPENAI_API_KEY"},
		{"gemini without key", ProviderConfig{Provider: "Gemini"}, "missing GEMINI_API_KEY"},
		{"anthropic without key", ProviderConfig{Provider: "anthropic"}, "missing ANTHROPIC_API_KEY"},
		{"mistral without key", ProviderConfig{Provider: "mistral"}, "missing MISTRAL_API_KEY"},
		{"unknown", ProviderConfig{Provider: "acme"}, "unsupported AI_PROVIDER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(context.Background(), tt.cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewModel_OpenAI(t *testing.T) {
	m, err := NewModel(context.Background(), ProviderConfig{Provider: "openai", APIKey: "sk-test", BaseURL: "http://localhost:1234/v1"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", DefaultModel("openai"))
	assert.Equal(t, "gpt-4o-mini", DefaultModel(""))
	assert.Equal(t, "gemini-2.5-flash", DefaultModel("gemini"))
}
