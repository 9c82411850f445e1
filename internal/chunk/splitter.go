package chunk

import (
	"fmt"
	"strings"

	"github.com/randalmurphy/code-analyzer/internal/analyzer"
)

// Chunker turns function records into chunks no larger than a budget.
type Chunker struct {
	sizer Sizer
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithSizer replaces the default EstimateTokens size policy.
func WithSizer(s Sizer) Option {
	return func(c *Chunker) {
		if s != nil {
			c.sizer = s
		}
	}
}

// NewChunker creates a chunker sized with EstimateTokens unless overridden.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{sizer: EstimateTokens}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// File chunks every function of an analyzed file with the default sizer.
func File(a *analyzer.Analyzer, maxSize int) []Chunk {
	return NewChunker().Chunk(a.Functions(), maxSize)
}

// Chunk emits chunks for functions in order. A function that fits maxSize
// yields one chunk; larger functions are split by Split.
func (c *Chunker) Chunk(functions []analyzer.FunctionInfo, maxSize int) []Chunk {
	var chunks []Chunk
	for _, fn := range functions {
		if c.sizer(fn.Code) <= maxSize {
			chunks = append(chunks, whole(fn))
			continue
		}
		chunks = append(chunks, c.Split(fn, maxSize)...)
	}
	return chunks
}

// Split divides fn on line boundaries. Every part starts with the signature
// line; parts after the first add a continuation marker naming the file line
// they resume at. The signature and docstring preamble is never divided, so
// parts may exceed maxSize when the budget is smaller than a few lines, and a
// function with no body line to split off comes back as a single part with
// TotalParts 1. A one-line function ("def f(): return x") has no line
// boundary at all and is returned whole.
func (c *Chunker) Split(fn analyzer.FunctionInfo, maxSize int) []Chunk {
	lines := strings.Split(fn.Code, "\n")
	if len(lines) == 1 {
		return []Chunk{whole(fn)}
	}
	signature := lines[0]

	preamble := fn.PreambleEnd - fn.StartLine + 1
	preamble = max(1, min(preamble, len(lines)))

	var (
		parts    []Chunk
		buf      = append([]string(nil), lines[:preamble]...)
		floor    = preamble
		bufStart = fn.StartLine
		bufEnd   = fn.StartLine + preamble - 1
	)

	flush := func() {
		part := newChunk(fn, strings.Join(buf, "\n"), bufStart, bufEnd)
		part.Metadata.IsPartial = true
		part.Metadata.Part = len(parts) + 1
		part.ID = fmt.Sprintf("func_%s_part%d", fn.Name, part.Metadata.Part)
		parts = append(parts, part)
	}

	bodyIndent := indentOf(firstNonBlank(lines[preamble:]))

	for i := preamble; i < len(lines); i++ {
		line := lines[i]
		lineNo := fn.StartLine + i

		candidate := strings.Join(buf, "\n") + "\n" + line
		if c.sizer(candidate) > maxSize && len(buf) > floor {
			flush()

			indent := bodyIndent
			if strings.TrimSpace(line) != "" {
				indent = indentOf(line)
			}
			marker := fmt.Sprintf("%s# ... (continuation from line %d)", indent, lineNo)

			buf = []string{signature, marker, line}
			floor = 2
			bufStart, bufEnd = lineNo, lineNo
			continue
		}

		buf = append(buf, line)
		bufEnd = lineNo
	}

	flush()
	parts[len(parts)-1].Metadata.TotalParts = len(parts)
	return parts
}

func whole(fn analyzer.FunctionInfo) Chunk {
	c := newChunk(fn, fn.Code, fn.StartLine, fn.EndLine)
	c.ID = "func_" + fn.Name
	return c
}

func newChunk(fn analyzer.FunctionInfo, text string, start, end int) Chunk {
	return Chunk{
		Text: text,
		Metadata: Metadata{
			Type:      TypeFunction,
			Name:      fn.Name,
			StartLine: start,
			EndLine:   end,
			Args:      fn.Args,
			Docstring: fn.Docstring,
		},
	}
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func firstNonBlank(lines []string) string {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
