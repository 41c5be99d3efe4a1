package port

import "context"

// Embedder generates vector embeddings for text against a remote provider.
type Embedder interface {
	// EmbedOne embeds a single text using the given credential.
	EmbedOne(ctx context.Context, text, credential string) ([]float32, error)

	// EmbedBatch embeds texts sequentially. The result has the same length and
	// order as texts; items that failed upstream are zero vectors.
	EmbedBatch(ctx context.Context, texts []string, credential string, onProgress func(done, total int)) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
