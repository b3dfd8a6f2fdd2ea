package reasoning

import (
	"regexp"
	"strings"
)

const (
	openTag    = "<think>"
	whitespace = " \t\r\n"
)

var openPattern = regexp.MustCompile(`(?i)<think>`)

// Delta is one piece of splitter output. At most one of the fields is nil.
type Delta struct {
	Content   *string
	Reasoning *string
}

// Splitter performs reasoning extraction over a stream of text fragments.
// It re-scans the text it is holding on every fragment; text that cannot be
// part of a think segment is released immediately, text from an opening tag
// (or a partially received one) is held until the closing tag arrives. Only
// the first segment is extracted. After it, content is trimmed the way
// Process trims it: leading whitespace is dropped until text is emitted and
// trailing whitespace is held until more text follows.
//
// A Splitter is not safe for concurrent use.
type Splitter struct {
	enabled bool
	held    string
	pending string
	done    bool
	emitted bool
}

// NewSplitter returns a Splitter. A nil or disabled extractor yields a
// pass-through splitter.
func (e *Extractor) NewSplitter() *Splitter {
	return &Splitter{enabled: e != nil && e.Enabled}
}

// Push consumes a fragment and returns the deltas that can be emitted now.
func (s *Splitter) Push(fragment string) []Delta {
	if !s.enabled {
		return s.content(fragment)
	}
	if s.done {
		if c := s.tail(fragment); c != nil {
			return []Delta{{Content: c}}
		}
		return nil
	}

	s.held += fragment

	if loc := thinkPattern.FindStringSubmatchIndex(s.held); loc != nil {
		before := s.held[:loc[0]]
		inner := s.held[loc[2]:loc[3]]
		after := s.held[loc[1]:]
		s.held = ""
		s.done = true

		d := Delta{
			Content:   s.tail(before + after),
			Reasoning: nonEmpty(strings.TrimSpace(inner)),
		}
		if d.Content == nil && d.Reasoning == nil {
			return nil
		}
		return []Delta{d}
	}

	cut := len(s.held)
	if loc := openPattern.FindStringIndex(s.held); loc != nil {
		cut = loc[0]
	} else {
		cut -= partialOpenLen(s.held)
	}

	release := s.held[:cut]
	if !s.emitted && strings.TrimSpace(release) == "" {
		// Leading whitespace stays with the held text so that a reply
		// opening with "\n<think>" yields no empty content chunk.
		return nil
	}
	s.held = s.held[cut:]
	return s.content(release)
}

// Flush returns whatever is still held once the upstream is exhausted. An
// unterminated think segment is released as ordinary content.
func (s *Splitter) Flush() []Delta {
	rest := s.held
	s.held = ""
	s.pending = ""
	if !s.emitted && strings.TrimSpace(rest) == "" {
		return nil
	}
	return s.content(rest)
}

// tail shapes content that follows the extracted segment.
func (s *Splitter) tail(text string) *string {
	text = s.pending + text
	s.pending = ""
	if !s.emitted {
		text = strings.TrimLeft(text, whitespace)
	}
	trimmed := strings.TrimRight(text, whitespace)
	s.pending = text[len(trimmed):]
	if trimmed == "" {
		return nil
	}
	s.emitted = true
	return &trimmed
}

func (s *Splitter) content(text string) []Delta {
	if text == "" {
		return nil
	}
	s.emitted = true
	return []Delta{{Content: &text}}
}

// partialOpenLen returns the length of the longest suffix of text that is a
// proper, case-insensitive prefix of the opening tag.
func partialOpenLen(text string) int {
	n := len(openTag) - 1
	if n > len(text) {
		n = len(text)
	}
	for ; n > 0; n-- {
		if strings.EqualFold(text[len(text)-n:], openTag[:n]) {
			return n
		}
	}
	return 0
}
