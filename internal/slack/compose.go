package slack

import "strings"

// SectionLimit is Slack's hard maximum for a section block's text content.
const SectionLimit = 3000

// SplitSections slices analysis text into section-sized chunks. When a chunk
// would be cut mid-stream and a newline exists past the chunk's midpoint, the
// cut moves back to that newline so sentences survive intact; otherwise the
// cut is a hard slice at the limit. The cursor advances by the consumed chunk
// length, so concatenating the returned chunks reproduces the input exactly.
func SplitSections(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	remaining := text
	for len(remaining) > 0 {
		chunk := remaining
		if len(chunk) > limit {
			chunk = chunk[:limit]
			if cut := strings.LastIndexByte(chunk, '\n'); cut > limit/2 {
				chunk = chunk[:cut]
			}
		}
		chunks = append(chunks, chunk)
		remaining = remaining[len(chunk):]
	}
	return chunks
}

// BuildReportBlocks assembles the report message: a header naming the tenant,
// a divider, the chart image when one was rendered, then the analysis split
// into section blocks.
func BuildReportBlocks(tenantName, analysis, chartURL string) []Block {
	blocks := []Block{
		HeaderBlock("📊 " + tenantName + " Analytics"),
		DividerBlock(),
	}

	if chartURL != "" {
		blocks = append(blocks,
			ImageBlock(chartURL, "Daily sessions and users trend for "+tenantName),
			DividerBlock(),
		)
	}

	for _, chunk := range SplitSections(analysis, SectionLimit) {
		blocks = append(blocks, SectionBlock(chunk))
	}
	return blocks
}
