// Package probe checks that an embedding model is reachable and shows what it
// returns for one input.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"k8s.io/klog/v2"

	"inferencepipeline/internal/logging"
)

type BedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type ParameterClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Result struct {
	ModelID    string    `json:"model_id"`
	TokenCount int       `json:"token_count"`
	Embedding  []float64 `json:"embedding"`
}

// Shape is the shape of the pooled embedding for a single input: [1, dim].
// It is not a per-token hidden-state tensor.
func (r *Result) Shape() []int {
	return []int{1, len(r.Embedding)}
}

// ResolveModelID picks the explicit model id, then the SSM parameter, then DefaultModelID.
func ResolveModelID(ctx context.Context, c ParameterClient, cfg *Config) (string, error) {
	if id := strings.TrimSpace(cfg.ModelID); id != "" {
		return id, nil
	}

	name := strings.TrimSpace(cfg.ModelIDParameter)
	if name == "" {
		return DefaultModelID, nil
	}

	out, err := c.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm GetParameter %s: %w", name, err)
	}
	if out.Parameter == nil || strings.TrimSpace(aws.ToString(out.Parameter.Value)) == "" {
		return "", fmt.Errorf("ssm parameter %s is empty", name)
	}

	id := strings.TrimSpace(aws.ToString(out.Parameter.Value))
	klog.V(logging.DEBUG).InfoS("Resolved model id from SSM", "parameter", name, "modelID", id)
	return id, nil
}

// Embed sends text to modelID and returns the embedding. The request body
// depends on the model family: Cohere takes a batch of texts, Titan a single one.
func Embed(ctx context.Context, c BedrockClient, modelID, text string) (*Result, error) {
	body, err := json.Marshal(requestBody(modelID, text))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := c.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock InvokeModel: %w", err)
	}

	res, err := parseResponse(modelID, out.Body)
	if err != nil {
		return nil, err
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("model %s returned no embedding", modelID)
	}
	res.ModelID = modelID
	return res, nil
}

func isCohere(modelID string) bool {
	return strings.HasPrefix(modelID, "cohere.") || strings.Contains(modelID, ".cohere.")
}

func requestBody(modelID, text string) map[string]any {
	if isCohere(modelID) {
		return map[string]any{
			"texts":      []string{text},
			"input_type": "search_document",
		}
	}
	return map[string]any{"inputText": text}
}

func parseResponse(modelID string, body []byte) (*Result, error) {
	if isCohere(modelID) {
		var raw struct {
			Embeddings [][]float64 `json:"embeddings"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("bedrock response unmarshal: %w", err)
		}
		res := &Result{}
		if len(raw.Embeddings) > 0 {
			res.Embedding = raw.Embeddings[0]
		}
		return res, nil
	}

	var raw struct {
		Embedding           []float64 `json:"embedding"`
		InputTextTokenCount int       `json:"inputTextTokenCount"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("bedrock response unmarshal: %w", err)
	}
	return &Result{Embedding: raw.Embedding, TokenCount: raw.InputTextTokenCount}, nil
}
