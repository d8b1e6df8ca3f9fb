// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"fmt"
	"sort"
)

// glossarySource is the logical document name for all glossary entries, so
// they can be re-ingested or deleted as a unit.
const glossarySource = "acronym_glossary"

// GlossaryDocuments renders an acronym map as one definition document per
// entry. The phrasing mirrors how students ask ("what does MLT stand for"),
// which makes definition questions match without query rewriting.
func GlossaryDocuments(acronyms map[string]string) []SourceDocument {
	keys := make([]string, 0, len(acronyms))
	for k := range acronyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	docs := make([]SourceDocument, 0, len(keys))
	for _, acronym := range keys {
		docs = append(docs, SourceDocument{
			Content: fmt.Sprintf("%s stands for %s, a course in the BS Degree Program.", acronym, acronyms[acronym]),
			Source:  glossarySource,
			Title:   acronym,
		})
	}
	return docs
}

// IndexGlossary writes the acronym glossary into the program index.
func (ix *Indexer) IndexGlossary(ctx context.Context, acronyms map[string]string) (int, error) {
	return ix.IndexAll(ctx, GlossaryDocuments(acronyms))
}
