package engine

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const truncationMarker = "\n[Context truncated due to length limit]"

// FormatContext renders results as an LLM prompt context block. Library
// passages come first under their own banner, numbering runs globally, and
// the output is hard-truncated at maxChars.
func FormatContext(results []domain.SearchResult, maxChars int) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	n := 0

	library := filterResults(results, true)
	if len(library) > 0 {
		b.WriteString("LIBRARY CONTEXT (Industry Standards and Best Practices):\n\n")
		for _, res := range library {
			n++
			writeEntry(&b, n, res)
		}
	}

	project := filterResults(results, false)
	if len(project) > 0 {
		if len(library) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("PROJECT CONTEXT (Current Project Documents):\n\n")
		for _, res := range project {
			n++
			writeEntry(&b, n, res)
		}
	}

	out := b.String()
	if maxChars > 0 && len(out) > maxChars {
		cut := maxChars - len(truncationMarker)
		if cut < 0 {
			cut = 0
		}
		out = out[:cut] + truncationMarker
	}
	return out
}

func writeEntry(b *strings.Builder, n int, res domain.SearchResult) {
	source := metaString(res.Metadata, "source")
	if source == "" {
		source = "unknown"
	}
	if res.IsLibrary && res.LibraryCategory != "" {
		fmt.Fprintf(b, "[%d] (%s | %s)\n%s\n\n", n, res.LibraryCategory, source, res.Content)
		return
	}
	fmt.Fprintf(b, "[%d] (%s)\n%s\n\n", n, source, res.Content)
}

func filterResults(results []domain.SearchResult, library bool) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(results))
	for _, res := range results {
		if res.IsLibrary == library {
			out = append(out, res)
		}
	}
	return out
}

// Sources aggregates provenance over a result set for API responses.
func Sources(results []domain.SearchResult) domain.SourcesSummary {
	summary := domain.SourcesSummary{
		Total:             len(results),
		LibraryCategories: make(map[string]int),
	}

	var scoreSum float64
	for _, res := range results {
		scoreSum += res.Score
		if res.IsLibrary {
			summary.Library++
			summary.LibraryCategories[res.LibraryCategory]++
			if res.BoostFactor != 1.0 {
				summary.BoostApplied = true
			}
			continue
		}
		summary.Project++
	}
	if len(results) > 0 {
		summary.AvgScore = scoreSum / float64(len(results))
	}
	return summary
}
