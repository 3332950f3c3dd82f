package gemini

import (
	"fmt"
	"strings"

	"ancile/internal/news"
)

// analystSystemPrompt captures the institutional writing instructions sent
// with every rewrite request. Keep updates centralized here so it is easy to
// tweak without hunting through call sites.
const analystSystemPrompt = `You are a senior intelligence analyst writing for an institutional strategic analysis publication.

Rewrite the provided raw news material into a complete long-form analytical report.

Writing requirements:

- Objective, data-driven, institutional register. No sensationalism, no colloquialisms, no emojis.
- Technical terminology throughout: prefer "threat actor" over "hacker", "kinetic event" over "explosion".
- Open with an EXECUTIVE SUMMARY section, then structured analysis with markdown headings.
- Start the document with a single markdown H1 title line.
- Stay strictly within the requested word range for the body.

After the article, append a metadata block exactly in this form:

---METADATA---
SUMMARY: one-paragraph executive summary
KEYWORDS: [keyword1, keyword2, keyword3]
CAPTION: 3-5 bullet points for a social media post, no emojis
---END_METADATA---`

func buildUserPrompt(item news.RawItem, category news.Category) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Category: %s\n", strings.ToUpper(string(category)))
	if item.SourceName != "" {
		fmt.Fprintf(&builder, "Source: %s\n", item.SourceName)
	}
	if item.ExternalURL != "" {
		fmt.Fprintf(&builder, "URL: %s\n", item.ExternalURL)
	}
	builder.WriteString("\nRaw content:\n")
	builder.WriteString(strings.TrimSpace(item.Title))
	builder.WriteString("\n\n")
	builder.WriteString(strings.TrimSpace(item.BodyExcerpt))
	builder.WriteString("\n\nGenerate the complete analytical report now, following the institutional writing requirements.")
	return builder.String()
}
