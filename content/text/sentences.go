// Package text provides plain-text tooling for the conversion pipeline.
package text

import (
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Splitter tokenizes text into sentences. A nil Splitter is a valid no-op,
// callers get the whole input back as a single sentence.
type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter builds a sentence splitter for the given language. Only an
// English model ships with the tokenizer, other languages turn sentence
// splitting off with a warning.
func NewSplitter(lang language.Tag, log *zap.Logger) *Splitter {
	base, confidence := lang.Base()
	if confidence == language.No || base.String() != "en" {
		log.Warn("No sentence tokenizer model for language, turning off sentence splitting", zap.Stringer("language", lang))
		return nil
	}
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentence tokenizer data", zap.Error(err))
		return nil
	}
	return &Splitter{tok}
}

// Split returns slice of sentences.
func (s *Splitter) Split(in string) []string {
	var out []string
	if s == nil {
		// sentence tokenizer is off
		return append(out, in)
	}

	for _, sentence := range s.Tokenize(in) {
		out = append(out, sentence.Text)
	}

	// The tokenizer attributes sentence trailing spaces to the next sentence,
	// move them back where they belong.
	for i := range len(out) - 1 {
		for idx, sym := range out[i+1] {
			if !unicode.IsSpace(sym) {
				out[i] = out[i] + out[i+1][0:idx]
				out[i+1] = out[i+1][idx:]
				break
			}
		}
	}
	return out
}

// First returns the first sentence of the input, trimmed. Used for caption
// inference where only the leading sentence of an adjacent paragraph is
// wanted.
func (s *Splitter) First(in string) string {
	in = strings.TrimSpace(in)
	if s == nil || in == "" {
		return in
	}
	parts := s.Split(in)
	if len(parts) == 0 {
		return in
	}
	return strings.TrimSpace(parts[0])
}
