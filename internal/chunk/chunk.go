// Package chunk splits extracted functions into size-bounded chunks for
// embedding and vector search.
package chunk

// TypeFunction is the only chunk type produced by the Chunker.
const TypeFunction = "function"

// DefaultMaxTokens keeps chunks well below common embedding model limits.
const DefaultMaxTokens = 6000

// CharsPerToken is the ratio used by EstimateTokens.
const CharsPerToken = 4

// Chunk is an indexable unit covering all or part of one function.
type Chunk struct {
	ID       string   `json:"id"` // func_<name> or func_<name>_part<N>
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes the function a chunk came from.
type Metadata struct {
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Args      []string `json:"args"`
	Docstring string   `json:"docstring"`

	IsPartial  bool `json:"is_partial"`
	Part       int  `json:"part,omitempty"`        // 1-based, split chunks only
	TotalParts int  `json:"total_parts,omitempty"` // last part only

	// Set by the indexing pipeline after secret redaction.
	HasSecrets bool `json:"has_secrets,omitempty"`
}

// Sizer estimates the size of text in the unit the chunk budget is expressed in.
type Sizer func(text string) int

// EstimateTokens approximates a token count as one token per four characters.
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

// TokenEstimate returns the rough token count of the chunk text.
func (c *Chunk) TokenEstimate() int {
	return EstimateTokens(c.Text)
}
