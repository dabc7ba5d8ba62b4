// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rules configures question normalization. Normalization strips the
// conversational wrapping off a customer question so that "请问黑胶VIP
// 多少钱呢？" and "黑胶VIP" retrieve the same knowledge entries.
//
// The rule lists are data, not code, so deployments serving a different
// product or register can tune them without a rebuild.
type Rules struct {
	// FillerWords are polite or interrogative fragments removed wherever
	// they occur. Order matters: earlier entries win when two overlap at
	// the same position, so longer phrases that share a prefix with a
	// shorter word must come first.
	FillerWords []string

	// TrailingParticles are tone particles stripped repeatedly from the
	// end of the question.
	TrailingParticles []string

	// PriceSuffixes are "how much" phrasings stripped once from the end.
	PriceSuffixes []string
}

// DefaultRules returns the rule set for Chinese customer-support
// questions.
func DefaultRules() Rules {
	return Rules{
		FillerWords: []string{
			"请问", "麻烦", "帮我", "我想问", "想问", "请",
			"怎么", "如何", "怎样", "要", "想", "能", "可以", "我想知道",
		},
		TrailingParticles: []string{"呢", "呀", "吗", "啊", "嘛"},
		PriceSuffixes: []string{
			"要多少钱", "多少钱", "多少", "价格是多少", "价钱是多少", "是多少",
		},
	}
}

// cjkPunct is the CJK punctuation removed alongside ASCII punctuation
// and whitespace.
const cjkPunct = "，。！？、；：“”‘’（）【】《》"

func isStrippablePunct(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	// ASCII punctuation only; CJK punctuation is enumerated explicitly.
	if r < 128 && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
		return true
	}
	return strings.ContainsRune(cjkPunct, r)
}

// Normalize reduces a customer question to its retrieval core:
//
//  1. trim surrounding whitespace
//  2. drop whitespace and punctuation everywhere
//  3. drop filler words everywhere
//  4. strip trailing tone particles
//  5. strip one trailing price suffix
//
// The result may be empty; callers treat a blank result, or a result
// equal to the input, as "no fallback available".
func Normalize(question string, rules Rules) string {
	s := strings.TrimSpace(question)

	s = strings.Map(func(r rune) rune {
		if isStrippablePunct(r) {
			return -1
		}
		return r
	}, s)

	s = removeFillerWords(s, rules.FillerWords)

	for stripped := true; stripped; {
		stripped = false
		for _, p := range rules.TrailingParticles {
			if strings.HasSuffix(s, p) {
				s = strings.TrimSuffix(s, p)
				stripped = true
			}
		}
	}

	// Longest matching suffix wins, mirroring leftmost-match semantics
	// over the suffix list.
	best := ""
	for _, p := range rules.PriceSuffixes {
		if strings.HasSuffix(s, p) && len(p) > len(best) {
			best = p
		}
	}
	s = strings.TrimSuffix(s, best)

	return s
}

// removeFillerWords deletes every occurrence of every filler word in a
// single left-to-right pass. At each position the first matching word
// in list order is removed, so "我想知道" survives the shorter "想"
// only because neither matches at its start before the full phrase does.
func removeFillerWords(s string, words []string) string {
	if len(words) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		matched := false
		for _, w := range words {
			if w != "" && strings.HasPrefix(s[i:], w) {
				i += len(w)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}
