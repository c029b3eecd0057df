// Package workout summarizes the local pull-up log into the data sent to the
// coach and the plain-text export.
package workout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const recentLogLimit = 10

// PullupLog is one logged set.
type PullupLog struct {
	ID        int64
	Reps      int
	Timestamp time.Time
}

// LogSource reads pull-up logs, newest first.
type LogSource interface {
	PullupLogs(ctx context.Context) ([]PullupLog, error)
	PullupLogsSince(ctx context.Context, since time.Time) ([]PullupLog, error)
}

// Summary is the workout state sent as structured data.
type Summary struct {
	Date           string
	TotalRepsToday int
	TotalRepsWeek  int
	PersonalRecord int
	RecentLogs     []PullupLog
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Sunday that starts t's week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// Summarize gathers today's and this week's totals, the personal record and
// the most recent logs.
func Summarize(ctx context.Context, src LogSource, now time.Time) (Summary, error) {
	s := Summary{Date: now.Format("2006-01-02")}

	var today, week, all []PullupLog
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logs, err := src.PullupLogsSince(ctx, StartOfDay(now))
		if err != nil {
			return fmt.Errorf("failed to load today's logs: %w", err)
		}
		today = logs
		return nil
	})
	g.Go(func() error {
		logs, err := src.PullupLogsSince(ctx, StartOfWeek(now))
		if err != nil {
			return fmt.Errorf("failed to load this week's logs: %w", err)
		}
		week = logs
		return nil
	})
	g.Go(func() error {
		logs, err := src.PullupLogs(ctx)
		if err != nil {
			return fmt.Errorf("failed to load logs: %w", err)
		}
		all = logs
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	s.TotalRepsToday = TotalReps(today)
	s.TotalRepsWeek = TotalReps(week)
	s.PersonalRecord = PersonalRecord(all)
	if len(all) > recentLogLimit {
		s.RecentLogs = all[:recentLogLimit]
	} else {
		s.RecentLogs = all
	}
	return s, nil
}

// TotalReps sums reps over logs.
func TotalReps(logs []PullupLog) int {
	total := 0
	for _, l := range logs {
		total += l.Reps
	}
	return total
}

// PersonalRecord is the best daily total across logs.
func PersonalRecord(logs []PullupLog) int {
	daily := map[string]int{}
	for _, l := range logs {
		daily[l.Timestamp.Format("2006-01-02")] += l.Reps
	}
	best := 0
	for _, total := range daily {
		if total > best {
			best = total
		}
	}
	return best
}

// Data returns the summary as the map embedded in the coaching message.
func (s Summary) Data() map[string]any {
	recent := make([]any, 0, len(s.RecentLogs))
	for _, l := range s.RecentLogs {
		recent = append(recent, map[string]any{
			"time": l.Timestamp.Format("03:04 PM"),
			"reps": l.Reps,
		})
	}
	return map[string]any{
		"date":             s.Date,
		"total_reps_today": s.TotalRepsToday,
		"total_reps_week":  s.TotalRepsWeek,
		"personal_record":  s.PersonalRecord,
		"recent_logs":      recent,
	}
}

// ExportText renders logs as the plain-text progress report, oldest first.
func ExportText(logs []PullupLog, now time.Time) string {
	sorted := make([]PullupLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	lines := make([]string, 0, len(sorted))
	for _, l := range sorted {
		lines = append(lines, fmt.Sprintf("- %s → %d reps", l.Timestamp.Format("15:04"), l.Reps))
	}

	return fmt.Sprintf("Project: Personal Fitness\nDate: %s\nPull-up Log:\n%s\nTotal: %d reps",
		now.Format("2006-01-02"), strings.Join(lines, "\n"), TotalReps(sorted))
}
