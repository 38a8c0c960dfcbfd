// Package rekognition recognises text with the AWS Rekognition DetectText API.
package rekognition

import (
	"context"
	"fmt"
	"strings"

	"github.com/alirezacodev/card-scanner/internal/ocr"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// maxImageBytes is the DetectText limit for inline image bytes.
const maxImageBytes = 5 * 1024 * 1024

// DetectTextAPI is the subset of the Rekognition client used here.
type DetectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Engine sends each image to Rekognition. Sessions are stateless and share the client.
type Engine struct {
	client        DetectTextAPI
	minConfidence float32
}

// New wraps an existing client.
func New(client DetectTextAPI, minConfidence float32) *Engine {
	return &Engine{client: client, minConfidence: minConfidence}
}

// NewFromRegion builds a client from the default AWS credential chain.
func NewFromRegion(ctx context.Context, region string, minConfidence float32) (*Engine, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(rekognition.NewFromConfig(cfg), minConfidence), nil
}

// Name implements ocr.Engine.
func (e *Engine) Name() string {
	return "rekognition"
}

// Open implements ocr.Engine.
func (e *Engine) Open(ctx context.Context) (ocr.Session, error) {
	if e.client == nil {
		return nil, fmt.Errorf("rekognition client is not configured")
	}
	return &session{engine: e}, nil
}

type session struct {
	engine *Engine
}

// Recognize ignores the language hint; Rekognition only reads Latin script.
func (s *session) Recognize(ctx context.Context, png []byte, _ string) (string, error) {
	if len(png) > maxImageBytes {
		return "", fmt.Errorf("image is %d bytes, DetectText accepts at most %d", len(png), maxImageBytes)
	}

	input := &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: png},
	}
	if s.engine.minConfidence > 0 {
		input.Filters = &types.DetectTextFilters{
			WordFilter: &types.DetectionFilter{MinConfidence: aws.Float32(s.engine.minConfidence)},
		}
	}

	out, err := s.engine.client.DetectText(ctx, input)
	if err != nil {
		return "", fmt.Errorf("detect text: %w", err)
	}
	return joinLines(out.TextDetections), nil
}

func (s *session) Close() error {
	return nil
}

// joinLines keeps LINE detections in reading order, one per line.
func joinLines(detections []types.TextDetection) string {
	lines := make([]string, 0, len(detections))
	for _, d := range detections {
		if d.Type != types.TextTypesLine || d.DetectedText == nil {
			continue
		}
		lines = append(lines, *d.DetectedText)
	}
	return strings.Join(lines, "\n")
}
