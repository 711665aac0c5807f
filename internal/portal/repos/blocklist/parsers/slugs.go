package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// ParseSlugList parses a newline-delimited slug list into rules.
//
// Behavior:
// - '#' starts a comment (whole-line or inline)
// - surrounding whitespace and a leading BOM are removed; case is preserved
// - blank lines and invalid slugs are skipped
// - duplicates are dropped, first occurrence wins
func ParseSlugList(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.SlugRule, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	out := make([]domain.SlugRule, 0, 16)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		slug := strings.TrimSpace(line)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			logger.Debug(map[string]any{"line": lineNum, "slug": slug}, "skip_duplicate")
			continue
		}
		rule, err := domain.NewSlugRule(slug, source, now)
		if err != nil {
			logger.Warn(map[string]any{"line": lineNum, "source": source, "error": err.Error()}, "skip_invalid_slug")
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_slug_list_done")
	return out, nil
}

// RulesFromSlugs converts configured slugs into rules, with the same
// skipping semantics as ParseSlugList.
func RulesFromSlugs(slugs []string, source string, logger logpkg.Logger, now time.Time) []domain.SlugRule {
	rules, _ := ParseSlugList(strings.NewReader(strings.Join(slugs, "\n")), source, logger, now)
	return rules
}

// Merge concatenates rule sets, keeping the first rule seen for each slug.
func Merge(sets ...[]domain.SlugRule) []domain.SlugRule {
	seen := make(map[string]struct{})
	var out []domain.SlugRule
	for _, set := range sets {
		for _, r := range set {
			if _, ok := seen[r.Slug]; ok {
				continue
			}
			seen[r.Slug] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
