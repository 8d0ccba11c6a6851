package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxChunkSize bounds a single SSE line to keep a misbehaving gateway from
// exhausting memory.
const maxChunkSize = 64 * 1024

// streamChunk mirrors one SSE data payload from the gateway. Reasoning
// deltas are emitted by capability-flagged models alongside visible text.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// consumeSSE reads data events until the terminator and forwards fragments.
// It returns the accumulated visible text; on error the partial text read
// so far is returned alongside the error.
func consumeSSE(r io.Reader, onFragment func(Fragment)) (string, error) {
	// The buffer is sized to the chunk bound: ReadSlice fails with
	// ErrBufferFull once an unterminated line fills it, so an oversized
	// chunk never buffers past the limit.
	reader := bufio.NewReaderSize(r, maxChunkSize)
	var sb strings.Builder
	sawDone := false
	for {
		raw, err := reader.ReadSlice('\n')
		if err != nil {
			if err == bufio.ErrBufferFull {
				return sb.String(), fmt.Errorf("stream chunk exceeds %d bytes", maxChunkSize)
			}
			if err == io.EOF {
				if sawDone {
					return sb.String(), nil
				}
				return sb.String(), errors.New("stream ended before completion signal")
			}
			return sb.String(), err
		}
		line := strings.TrimSpace(string(raw))
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawDone = true
			return sb.String(), nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return sb.String(), fmt.Errorf("malformed stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return sb.String(), fmt.Errorf("gateway error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		d := chunk.Choices[0].Delta
		if d.Reasoning != "" && onFragment != nil {
			onFragment(Fragment{Kind: FragmentReasoning, Content: d.Reasoning})
		}
		if d.Content != "" {
			sb.WriteString(d.Content)
			if onFragment != nil {
				onFragment(Fragment{Kind: FragmentText, Content: d.Content})
			}
		}
	}
}
