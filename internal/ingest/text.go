package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"rosterd.org/internal/obs"
)

// textParser handles column-aligned text extracted from PDFs. The grammar
// is heuristic and explicitly best-effort: a run of two or more whitespace
// characters is a column delimiter; if that yields fewer than five columns,
// every whitespace run is a delimiter instead. Lines matching neither rule
// are dropped, not failed.
type textParser struct{}

var (
	wideGap = regexp.MustCompile(`\s{2,}`)
	anyGap  = regexp.MustCompile(`\s+`)
)

func (textParser) Parse(data []byte) ([]RawRecord, error) {
	text, err := extractText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return parseLines(text), nil
}

// parseLines expects five ordered columns per line: name, user_id,
// roll_number, password, role. Header lines (anything containing "name"),
// blank lines, short lines, and unknown roles are skipped with a warning.
func parseLines(text string) []RawRecord {
	var records []RawRecord
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(strings.ToLower(line), "name") {
			continue
		}

		cleaned := wideGap.ReplaceAllString(line, ",")
		if strings.Count(cleaned, ",") < 4 {
			cleaned = anyGap.ReplaceAllString(line, ",")
		}

		parts := strings.Split(cleaned, ",")
		if len(parts) < 5 {
			obs.Warn("skipping malformed line", map[string]any{"line": line})
			continue
		}
		name := strings.TrimSpace(parts[0])
		userID := strings.TrimSpace(parts[1])
		roll := strings.TrimSpace(parts[2])
		password := strings.TrimSpace(parts[3])
		role := strings.ToLower(strings.TrimSpace(parts[4]))
		if name == "" || userID == "" || roll == "" || password == "" || role == "" {
			obs.Warn("skipping malformed line", map[string]any{"line": line})
			continue
		}
		if role != "student" && role != "faculty" {
			obs.Warn("skipping line with invalid role", map[string]any{"line": line, "role": role})
			continue
		}

		records = append(records, RawRecord{
			"name":        name,
			"user_id":     userID,
			"roll_number": roll,
			"password":    password,
			"role":        role,
		})
	}
	return records
}

// extractText renders each PDF page row by row, reinserting wide gaps
// between text chunks that sit far apart so the column heuristic still
// applies to the recovered lines.
func extractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			sb.WriteString(rowText(row))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

func rowText(row *pdf.Row) string {
	var sb strings.Builder
	prevEnd := -1.0
	for _, word := range row.Content {
		if prevEnd >= 0 {
			gap := word.X - prevEnd
			size := word.FontSize
			if size <= 0 {
				size = 10
			}
			switch {
			case gap > size:
				sb.WriteString("  ")
			case gap > size/4:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(word.S)
		prevEnd = word.X + word.W
	}
	return sb.String()
}
