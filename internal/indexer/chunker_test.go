package indexer

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.input); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText("", 100, 10); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
	if got := ChunkText("   \n ", 100, 10); got != nil {
		t.Errorf("expected nil for whitespace, got %v", got)
	}
}

func TestChunkTextShortTextSingleChunk(t *testing.T) {
	text := "Spent ten dollars on lunch. Took the bus home."
	chunks := ChunkText(text, 100, 10)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "lunch") || !strings.Contains(chunks[0], "bus") {
		t.Errorf("chunk lost content: %q", chunks[0])
	}
}

func TestChunkTextWindowsOverlap(t *testing.T) {
	// 40 sentences of ~6 tokens each against a 30-token window forces
	// several chunks.
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This is sentence number ")
		b.WriteString(strings.Repeat("x", i%3+1))
		b.WriteString(". ")
	}
	chunks := ChunkText(b.String(), 30, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Consecutive chunks share at least one sentence.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Split(chunks[i-1], ". ")
		last := prev[len(prev)-1]
		if last == "" && len(prev) > 1 {
			last = prev[len(prev)-2]
		}
		if !strings.Contains(chunks[i], strings.TrimSuffix(last, ".")) {
			t.Errorf("chunk %d does not overlap with its predecessor", i)
		}
	}
}

func TestChunkTextAlwaysAdvances(t *testing.T) {
	// Overlap nearly as large as the window must not loop forever.
	text := strings.Repeat("One short sentence here. ", 50)
	chunks := ChunkText(text, 10, 9)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if len(chunks) > 200 {
		t.Errorf("suspiciously many chunks (%d), window likely not advancing", len(chunks))
	}
}

func TestChunkTextKeepsUnterminatedTail(t *testing.T) {
	// Statement tails often end without a closing period, and a decimal
	// point must not swallow what follows it.
	text := "First sentence about groceries. Final balance was 1234.50 GBP carried forward"
	chunks := ChunkText(text, 500, 50)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "GBP carried forward") {
		t.Errorf("tail after the last period was dropped: %q", chunks[0])
	}
}

func TestChunkTextNoTerminalPunctuation(t *testing.T) {
	chunks := ChunkText("just a fragment with no period", 100, 10)
	if len(chunks) != 1 || !strings.Contains(chunks[0], "no period") {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestChunkTextHardSplitsLongSentence(t *testing.T) {
	// One "sentence" with no boundaries, far longer than the default window.
	text := strings.Repeat("word ", 1000)
	chunks := ChunkText(text, DefaultWindowTokens, DefaultOverlapTokens)
	if len(chunks) < 2 {
		t.Fatalf("expected long run of text to split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if strings.Contains(c, "wordword") {
			t.Errorf("chunk %d split mid-word: %q", i, c[:40])
		}
	}
}
