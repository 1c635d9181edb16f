package answer

import (
	"context"
	"fmt"
	"strings"
)

const insufficientInfoAnswer = "I don't have enough information in the ingested documentation to answer this question."

const composerSystemPrompt = "You are a documentation assistant. Answer the question using ONLY the " +
	"evidence provided. Do not invent endpoints, error codes, limits or behavior that the evidence " +
	"does not state. If the evidence only partially covers the question, say what is covered and " +
	"what is not. Be concise."

// Composer turns ranked evidence into the final answer. It owns citation
// formatting and the grounding prompt; the completion client only phrases.
type Composer struct {
	completion CompletionClient
}

// NewComposer creates a composer backed by the given completion client.
func NewComposer(completion CompletionClient) *Composer {
	return &Composer{completion: completion}
}

// Compose builds the answer for the question from merged evidence. The
// zero-confidence case returns a fixed refusal without touching the
// completion service.
func (c *Composer) Compose(ctx context.Context, question string, evidence []EvidenceItem, confidence float32, mode RetrievalMode, reasoning string) (*Answer, error) {
	if confidence == ConfidenceNone || len(evidence) == 0 {
		return &Answer{
			Text:       insufficientInfoAnswer,
			Citations:  nil,
			Evidence:   nil,
			Confidence: ConfidenceNone,
			Mode:       mode,
			Reasoning:  reasoning,
		}, nil
	}

	prompt := buildPrompt(question, evidence)
	text, err := c.completion.Complete(ctx, composerSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceDegraded, err)
	}

	return &Answer{
		Text:       strings.TrimSpace(text),
		Citations:  citations(evidence),
		Evidence:   evidence,
		Confidence: confidence,
		Mode:       mode,
		Reasoning:  reasoning,
	}, nil
}

// citations lists the distinct source files behind the evidence, in rank
// order.
func citations(evidence []EvidenceItem) []string {
	seen := make(map[string]struct{}, len(evidence))
	var files []string
	for _, it := range evidence {
		file := it.SourceFile()
		if file == "" {
			continue
		}
		if _, ok := seen[file]; ok {
			continue
		}
		seen[file] = struct{}{}
		files = append(files, file)
	}
	return files
}

func buildPrompt(question string, evidence []EvidenceItem) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nEvidence:\n")

	n := 0
	for _, it := range evidence {
		n++
		switch {
		case it.Fact != nil:
			fmt.Fprintf(&b, "%d. [fact from %s] %s\n", n, it.Fact.File, it.Fact.String())
		case it.Chunk != nil:
			title := it.Chunk.Title
			if title == "" {
				title = it.Chunk.File
			}
			fmt.Fprintf(&b, "%d. [passage from %s, %q]\n%s\n", n, it.Chunk.File, title, strings.TrimSpace(it.Chunk.Text))
		}
	}

	b.WriteString("\nAnswer the question from this evidence only.")
	return b.String()
}
