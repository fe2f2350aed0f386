package llm

import "context"

// Oracle is the model access contract used by every agent. Complete sends a
// system prompt plus a JSON payload and returns the raw model text; Embed
// returns one vector per input text, in input order.
type Oracle interface {
	Complete(ctx context.Context, system string, payload any) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
