package insights

import (
	"regexp"
	"strings"
	"time"
)

// TotalActivityInsight reports the raw count of content changes in range.
type TotalActivityInsight struct{}

func (TotalActivityInsight) Metadata() Metadata {
	return Metadata{ID: "total_activity", Title: "Total Activity", Description: "Count of content changes recorded in the selected window"}
}

func (TotalActivityInsight) Calculate(c CalcContext) Result {
	diffs, err := diffsInRange(c.Store, c.Start, c.End)
	if err != nil {
		return errorResult(err)
	}
	trend := TrendFlat
	if len(diffs) > 0 {
		trend = TrendUp
	}
	return Result{Value: len(diffs), Trend: trend, Status: StatusOK}
}

// PeakHourInsight reports which hour-of-day saw the most activity.
type PeakHourInsight struct{}

func (PeakHourInsight) Metadata() Metadata {
	return Metadata{ID: "peak_hour", Title: "Peak Activity Hour", Description: "The hour of day (0-23) with the most recorded changes"}
}

func (PeakHourInsight) Calculate(c CalcContext) Result {
	diffs, err := diffsInRange(c.Store, c.Start, c.End)
	if err != nil {
		return errorResult(err)
	}
	if len(diffs) == 0 {
		return Result{Value: nil, Status: StatusWarning, Message: "no activity in range"}
	}

	byHour := make(map[int]int)
	for _, d := range diffs {
		byHour[d.Timestamp.Hour()]++
	}
	bestHour, bestCount := 0, -1
	chart := make([]ChartPoint, 24)
	for h := 0; h < 24; h++ {
		count := byHour[h]
		chart[h] = ChartPoint{Label: formatHour(h), Value: float64(count)}
		if count > bestCount {
			bestHour, bestCount = h, count
		}
	}
	return Result{
		Value:   bestHour,
		Chart:   chart,
		Details: map[string]any{"count": bestCount},
		Status:  StatusOK,
	}
}

func formatHour(h int) string {
	return time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("15:00")
}

// TrendingFilesInsight reports the most-changed files in range.
type TrendingFilesInsight struct{}

func (TrendingFilesInsight) Metadata() Metadata {
	return Metadata{ID: "trending_files", Title: "Trending Files", Description: "Files with the most recorded changes in the selected window"}
}

func (TrendingFilesInsight) Calculate(c CalcContext) Result {
	diffs, err := diffsInRange(c.Store, c.Start, c.End)
	if err != nil {
		return errorResult(err)
	}
	byFile := make(map[string]int)
	for _, d := range diffs {
		byFile[d.FilePath]++
	}
	ranked := sortedKeysByValueDesc(byFile)

	limit := 10
	if v, ok := c.Config["limit"].(int); ok && v > 0 {
		limit = v
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	details := make(map[string]any, len(ranked))
	for _, f := range ranked {
		details[f] = byFile[f]
	}
	return Result{Value: ranked, Details: details, Status: StatusOK}
}

// CodeMetricsInsight reports aggregate added/removed line counts in range.
type CodeMetricsInsight struct{}

func (CodeMetricsInsight) Metadata() Metadata {
	return Metadata{ID: "code_metrics", Title: "Code Metrics", Description: "Aggregate lines added/removed across the selected window"}
}

func (CodeMetricsInsight) Calculate(c CalcContext) Result {
	diffs, err := diffsInRange(c.Store, c.Start, c.End)
	if err != nil {
		return errorResult(err)
	}
	var added, removed int
	for _, d := range diffs {
		added += d.LinesAdded
		removed += d.LinesRemoved
	}
	trend := TrendFlat
	switch {
	case added > removed:
		trend = TrendUp
	case removed > added:
		trend = TrendDown
	}
	return Result{
		Value: added - removed,
		Trend: trend,
		Details: map[string]any{
			"lines_added":   added,
			"lines_removed": removed,
		},
		Status: StatusOK,
	}
}

var todoPattern = regexp.MustCompile(`(?i)\bTODO\b[:\s](.*)`)

// StaleTodosInsight flags TODO comments in files that have not changed
// recently, on the theory that a TODO nobody has touched in a while is
// more likely to be forgotten than in progress.
type StaleTodosInsight struct{}

func (StaleTodosInsight) Metadata() Metadata {
	return Metadata{ID: "stale_todos", Title: "Stale TODOs", Description: "TODO comments in files that haven't changed in over 30 days"}
}

func (StaleTodosInsight) Calculate(c CalcContext) Result {
	staleAfter := 30 * 24 * time.Hour
	if v, ok := c.Config["stale_after_hours"].(int); ok && v > 0 {
		staleAfter = time.Duration(v) * time.Hour
	}

	states, err := c.Store.AllFileStates()
	if err != nil {
		return errorResult(err)
	}

	now := time.Now()
	var stale []map[string]any
	for _, fs := range states {
		if now.Sub(fs.UpdatedAt) < staleAfter {
			continue
		}
		version, err := c.Store.LatestVersionForPath(fs.FilePath)
		if err != nil || version == nil {
			continue
		}
		for _, line := range strings.Split(version.Content, "\n") {
			if m := todoPattern.FindStringSubmatch(line); m != nil {
				stale = append(stale, map[string]any{
					"file": fs.FilePath,
					"note": strings.TrimSpace(m[1]),
				})
			}
		}
	}

	return Result{
		Value:   len(stale),
		Details: map[string]any{"todos": stale},
		Status:  StatusOK,
	}
}

var wikilinkPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

// OrphanMentionsInsight flags [[wikilink]]-style references to files that
// are no longer tracked (deleted or renamed), so the living note doesn't
// silently accumulate dead links.
type OrphanMentionsInsight struct{}

func (OrphanMentionsInsight) Metadata() Metadata {
	return Metadata{ID: "orphan_mentions", Title: "Orphan Mentions", Description: "Wikilink-style references to files no longer tracked"}
}

func (OrphanMentionsInsight) Calculate(c CalcContext) Result {
	states, err := c.Store.AllFileStates()
	if err != nil {
		return errorResult(err)
	}

	known := make(map[string]bool, len(states))
	for _, fs := range states {
		known[fs.FilePath] = true
		known[strings.TrimSuffix(fs.FilePath, pathExt(fs.FilePath))] = true
	}

	var orphans []map[string]any
	for _, fs := range states {
		version, err := c.Store.LatestVersionForPath(fs.FilePath)
		if err != nil || version == nil {
			continue
		}
		for _, m := range wikilinkPattern.FindAllStringSubmatch(version.Content, -1) {
			target := strings.TrimSpace(m[1])
			if target == "" || known[target] {
				continue
			}
			orphans = append(orphans, map[string]any{
				"source": fs.FilePath,
				"target": target,
			})
		}
	}

	return Result{
		Value:   len(orphans),
		Details: map[string]any{"orphans": orphans},
		Status:  StatusOK,
	}
}

func pathExt(p string) string {
	if i := strings.LastIndex(p, "."); i >= 0 {
		return p[i:]
	}
	return ""
}
