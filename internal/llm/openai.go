package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/repovet/repovet/internal/config"
)

// OpenAIOracle implements Oracle against the OpenAI API. Judging runs at
// temperature 0 so repeated analyses of the same CV stay comparable.
type OpenAIOracle struct {
	client *openai.Client
	cfg    config.LLMConfig
	log    *zap.Logger
}

// NewOpenAIOracle creates an oracle from LLM configuration.
func NewOpenAIOracle(cfg config.LLMConfig, log *zap.Logger) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIOracle{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		log:    log,
	}, nil
}

// Complete sends a system prompt and a JSON-encoded payload as the user
// message and returns the raw model text.
func (o *OpenAIOracle) Complete(ctx context.Context, system string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model: o.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns one vector per input text. Inputs are truncated to the
// configured cap and sent in batches; output order matches input order.
func (o *OpenAIOracle) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += o.cfg.EmbedBatch {
		end := start + o.cfg.EmbedBatch
		if end > len(texts) {
			end = len(texts)
		}

		batch := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			if len(t) > o.cfg.EmbedCap {
				t = t[:o.cfg.EmbedCap]
			}
			batch = append(batch, t)
		}

		ctxWithTimeout, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
		resp, err := o.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(o.cfg.EmbedModel),
			Input: batch,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("embeddings batch at %d: %w", start, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embeddings batch at %d: got %d vectors for %d inputs", start, len(resp.Data), len(batch))
		}

		// The API does not guarantee response order; Index does.
		vectors := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("embeddings batch at %d: index %d out of range", start, d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		out = append(out, vectors...)
	}

	return out, nil
}
