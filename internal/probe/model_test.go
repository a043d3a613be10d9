package probe

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBedrock struct {
	body  string
	err   error
	input *bedrockruntime.InvokeModelInput
}

func (m *mockBedrock) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(m.body)}, nil
}

type mockParams struct {
	values map[string]string
	calls  int
}

func (m *mockParams) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	m.calls++
	v, ok := m.values[aws.ToString(params.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(v)}}, nil
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("titan", func(t *testing.T) {
		br := &mockBedrock{body: `{"embedding":[0.1,0.2,0.3,0.4],"inputTextTokenCount":17}`}

		res, err := Embed(ctx, br, DefaultModelID, DefaultText)
		require.NoError(t, err)

		assert.Equal(t, DefaultModelID, res.ModelID)
		assert.Equal(t, 17, res.TokenCount)
		assert.Equal(t, []int{1, 4}, res.Shape())

		assert.Equal(t, DefaultModelID, aws.ToString(br.input.ModelId))
		var sent map[string]any
		require.NoError(t, json.Unmarshal(br.input.Body, &sent))
		assert.Equal(t, map[string]any{"inputText": DefaultText}, sent)
	})

	t.Run("cohere", func(t *testing.T) {
		br := &mockBedrock{body: `{"embeddings":[[0.5,0.6]],"id":"x"}`}

		res, err := Embed(ctx, br, "cohere.embed-english-v3", "chest pain")
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, res.Shape())
		assert.Zero(t, res.TokenCount)

		var sent map[string]any
		require.NoError(t, json.Unmarshal(br.input.Body, &sent))
		assert.Equal(t, []any{"chest pain"}, sent["texts"])
		assert.Equal(t, "search_document", sent["input_type"])
	})

	t.Run("invoke error is wrapped", func(t *testing.T) {
		invokeErr := errors.New("access denied")
		_, err := Embed(ctx, &mockBedrock{err: invokeErr}, DefaultModelID, DefaultText)
		assert.ErrorIs(t, err, invokeErr)
	})

	t.Run("empty embedding", func(t *testing.T) {
		_, err := Embed(ctx, &mockBedrock{body: `{"embedding":[]}`}, DefaultModelID, DefaultText)
		assert.Error(t, err)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := Embed(ctx, &mockBedrock{body: `<html>`}, DefaultModelID, DefaultText)
		assert.Error(t, err)
	})
}

func TestResolveModelID(t *testing.T) {
	ctx := context.Background()
	params := &mockParams{values: map[string]string{
		"/inference/model-id": " amazon.titan-embed-text-v1 ",
		"/inference/blank":    "",
	}}

	tests := []struct {
		name        string
		cfg         Config
		expected    string
		expectedErr bool
	}{
		{name: "Explicit model id", cfg: Config{ModelID: "cohere.embed-english-v3", ModelIDParameter: "/inference/model-id"}, expected: "cohere.embed-english-v3"},
		{name: "From SSM", cfg: Config{ModelIDParameter: "/inference/model-id"}, expected: "amazon.titan-embed-text-v1"},
		{name: "Default", cfg: Config{}, expected: DefaultModelID},
		{name: "Missing parameter", cfg: Config{ModelIDParameter: "/inference/missing"}, expectedErr: true},
		{name: "Blank parameter", cfg: Config{ModelIDParameter: "/inference/blank"}, expectedErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ResolveModelID(ctx, params, &tt.cfg)
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model_id_parameter: /inference/model-id\nregion: us-west-2\n"), 0o600))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromYAML(path))

	assert.Equal(t, "/inference/model-id", cfg.ModelIDParameter)
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Empty(t, cfg.ModelID)
	assert.Equal(t, DefaultText, cfg.Text)

	assert.Error(t, NewConfig().LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml")))
}
