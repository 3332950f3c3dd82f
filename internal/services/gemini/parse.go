package gemini

import (
	"strings"

	"ancile/internal/news"
)

const (
	metadataOpen  = "---METADATA---"
	metadataClose = "---END_METADATA---"
)

// parseDraft splits a completion into article text and the trailing metadata
// block. Missing metadata degrades gracefully: the draft keeps its body and
// the summary falls back to the first paragraph.
func parseDraft(text string) news.Draft {
	draft := news.Draft{Raw: text}

	article := text
	var metadata string
	if idx := strings.Index(text, metadataOpen); idx >= 0 {
		article = strings.TrimSpace(text[:idx])
		metadata = text[idx+len(metadataOpen):]
		if end := strings.Index(metadata, metadataClose); end >= 0 {
			metadata = metadata[:end]
		}
	}

	draft.Title, draft.Body = splitTitle(article)
	draft.Summary, draft.Keywords, draft.Caption = parseMetadata(metadata)
	if draft.Summary == "" {
		draft.Summary = firstParagraph(draft.Body)
	}
	return draft
}

func splitTitle(article string) (string, string) {
	lines := strings.SplitN(strings.TrimSpace(article), "\n", 2)
	if len(lines) == 0 {
		return "", ""
	}
	title := strings.TrimSpace(strings.TrimLeft(lines[0], "# "))
	body := ""
	if len(lines) == 2 {
		body = strings.TrimSpace(lines[1])
	}
	if title == "" {
		title = "Untitled Intelligence Report"
	}
	return title, body
}

func parseMetadata(metadata string) (summary string, keywords []string, caption string) {
	var captionLines []string
	inCaption := false
	for _, line := range strings.Split(metadata, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "SUMMARY:"):
			inCaption = false
			summary = strings.TrimSpace(strings.TrimPrefix(trimmed, "SUMMARY:"))
		case strings.HasPrefix(trimmed, "KEYWORDS:"):
			inCaption = false
			keywords = parseKeywordList(strings.TrimPrefix(trimmed, "KEYWORDS:"))
		case strings.HasPrefix(trimmed, "CAPTION:"):
			inCaption = true
			if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "CAPTION:")); rest != "" {
				captionLines = append(captionLines, rest)
			}
		case inCaption && trimmed != "":
			captionLines = append(captionLines, trimmed)
		}
	}
	caption = strings.Join(captionLines, "\n")
	return summary, keywords, caption
}

func parseKeywordList(raw string) []string {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if cleaned := strings.Trim(strings.TrimSpace(p), `"'`); cleaned != "" {
			keywords = append(keywords, cleaned)
		}
	}
	return keywords
}

func firstParagraph(body string) string {
	for _, paragraph := range strings.Split(body, "\n\n") {
		cleaned := strings.TrimSpace(paragraph)
		if cleaned == "" || strings.HasPrefix(cleaned, "#") {
			continue
		}
		if len(cleaned) > 500 {
			cleaned = cleaned[:500]
		}
		return cleaned
	}
	return ""
}
