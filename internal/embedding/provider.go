package embedding

import "context"

// Provider generates embeddings from text.
type Provider interface {
	Embed(ctx context.Context, text string) (Embedding, error)
	ModelName() string
}
