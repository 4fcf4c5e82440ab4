package indexer

import (
	"regexp"
	"strings"
)

// Chunking defaults: overlapping windows measured in estimated tokens, cut on
// sentence boundaries where possible.
const (
	DefaultWindowTokens  = 500
	DefaultOverlapTokens = 50

	// charsPerToken is the rough character-to-token ratio used everywhere a
	// token budget has to be estimated without a real tokenizer.
	charsPerToken = 4
)

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?\n]+[.!?\n]+)`)

// EstimateTokens approximates the token count of a string.
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// ChunkText splits text into overlapping windows of roughly windowTokens
// tokens, starting each window overlapTokens before the previous one ended.
// Sentence boundaries are respected; a single sentence longer than the window
// is split at word boundaries instead of mid-word.
func ChunkText(text string, windowTokens, overlapTokens int) []string {
	if windowTokens <= 0 {
		windowTokens = DefaultWindowTokens
	}
	if overlapTokens < 0 || overlapTokens >= windowTokens {
		overlapTokens = DefaultOverlapTokens
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		var window []string
		tokens := 0
		j := i
		for j < len(sentences) {
			t := EstimateTokens(sentences[j])
			if tokens > 0 && tokens+t > windowTokens {
				break
			}
			window = append(window, sentences[j])
			tokens += t
			j++
		}

		chunks = append(chunks, strings.Join(window, " "))
		if j >= len(sentences) {
			break
		}

		// Walk back far enough to carry ~overlapTokens into the next window.
		back := j
		carried := 0
		for back > i && carried < overlapTokens {
			back--
			carried += EstimateTokens(sentences[back])
		}
		if back <= i {
			back = i + 1 // always advance
		}
		i = back
	}
	return chunks
}

// splitSentences breaks text into trimmed sentences, hard-splitting any
// sentence that would exceed a window on its own.
func splitSentences(text string) []string {
	var raw []string
	end := 0
	for _, loc := range sentenceSplitter.FindAllStringIndex(text, -1) {
		raw = append(raw, text[loc[0]:loc[1]])
		end = loc[1]
	}
	// Text after the last terminal mark still belongs to the document.
	if rest := strings.TrimSpace(text[end:]); rest != "" {
		raw = append(raw, rest)
	}

	maxChars := DefaultWindowTokens * charsPerToken
	var sentences []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for len(s) > maxChars {
			cut := strings.LastIndex(s[:maxChars], " ")
			if cut <= 0 {
				cut = maxChars
			}
			sentences = append(sentences, strings.TrimSpace(s[:cut]))
			s = strings.TrimSpace(s[cut:])
		}
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
