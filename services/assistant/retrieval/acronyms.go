// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAcronyms maps the program's course and subject acronyms to their
// full names. Students ask with the acronym; the indexed material mostly
// uses the full name.
var DefaultAcronyms = map[string]string{
	"MLT":    "Machine Learning Techniques",
	"MLF":    "Machine Learning Foundations",
	"MLP":    "Machine Learning Practice",
	"BDM":    "Business Data Management",
	"PDSA":   "Python Data Structures and Algorithms",
	"BA":     "Business Analytics",
	"TDS":    "Tools in Data Science",
	"MAD":    "Modern Application Development",
	"ST":     "Software Testing",
	"DSA":    "Data Structures and Algorithms",
	"AI":     "Artificial Intelligence",
	"DS":     "Data Science",
	"CV":     "Computer Vision",
	"NLP":    "Natural Language Processing",
	"LLM":    "Large Language Model",
	"MLOPS":  "Machine Learning Operations",
	"DBMS":   "Database Management Systems",
	"ADS":    "Advanced Data Structures",
	"Gen AI": "Generative Artificial Intelligence",
}

// definitionPhrases mark questions that ask what an acronym means. Those
// questions are left untouched, the glossary documents are phrased as
// definitions and match them directly.
var definitionPhrases = []string{
	"stand for",
	"stands for",
	"full form",
	"meaning of",
	"abbreviation",
}

// AcronymExpander rewrites questions so acronyms also carry their full
// names, improving semantic match against the indexed material.
type AcronymExpander struct {
	patterns []acronymPattern
}

type acronymPattern struct {
	acronym  string
	fullName string
	re       *regexp.Regexp
}

// NewAcronymExpander builds an expander from an acronym map. A nil map uses
// DefaultAcronyms.
func NewAcronymExpander(acronyms map[string]string) *AcronymExpander {
	if acronyms == nil {
		acronyms = DefaultAcronyms
	}

	// Longer acronyms first so "Gen AI" wins over "AI".
	keys := make([]string, 0, len(acronyms))
	for k := range acronyms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	patterns := make([]acronymPattern, 0, len(keys))
	for _, acronym := range keys {
		// Case-sensitive on purpose: "ai" and "ba" appear inside ordinary
		// words and lowercase questions far too often.
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(acronym) + `\b`)
		patterns = append(patterns, acronymPattern{
			acronym:  acronym,
			fullName: acronyms[acronym],
			re:       re,
		})
	}
	return &AcronymExpander{patterns: patterns}
}

// LoadAcronyms reads an acronym map from a YAML file of "ACRONYM: Full Name"
// pairs.
func LoadAcronyms(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read acronym glossary: %w", err)
	}
	acronyms := make(map[string]string)
	if err := yaml.Unmarshal(raw, &acronyms); err != nil {
		return nil, fmt.Errorf("parse acronym glossary %s: %w", path, err)
	}
	if len(acronyms) == 0 {
		return nil, fmt.Errorf("acronym glossary %s is empty", path)
	}
	return acronyms, nil
}

// Expand rewrites each known acronym in the question as "ACRONYM (Full
// Name)". Definition questions and questions that already spell out the
// full name are returned unchanged.
func (e *AcronymExpander) Expand(question string) string {
	lowered := strings.ToLower(question)
	for _, phrase := range definitionPhrases {
		if strings.Contains(lowered, phrase) {
			return question
		}
	}

	expanded := question
	for _, p := range e.patterns {
		if !p.re.MatchString(expanded) {
			continue
		}
		if strings.Contains(strings.ToLower(expanded), strings.ToLower(p.fullName)) {
			continue
		}
		replacement := p.acronym + " (" + p.fullName + ")"
		expanded = p.re.ReplaceAllLiteralString(expanded, replacement)
	}
	return expanded
}
