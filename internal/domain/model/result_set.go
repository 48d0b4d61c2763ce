package model

import (
	"fmt"
	"sort"
	"strings"
)

// ResultSet is the ordered collection of completed jobs of one batch.
type ResultSet struct {
	BatchID string
	Jobs    []*Job
}

func NewResultSet(batchID string, jobs []*Job) *ResultSet {
	rs := &ResultSet{BatchID: batchID, Jobs: jobs}
	rs.sort()
	return rs
}

// sort restores the original input order; completion order is arbitrary.
func (rs *ResultSet) sort() {
	sort.SliceStable(rs.Jobs, func(i, j int) bool { return rs.Jobs[i].Index < rs.Jobs[j].Index })
}

func (rs *ResultSet) Len() int { return len(rs.Jobs) }

func (rs *ResultSet) Succeeded() []*Job {
	out := make([]*Job, 0, len(rs.Jobs))
	for _, j := range rs.Jobs {
		if j.Succeeded() {
			out = append(out, j)
		}
	}
	return out
}

func (rs *ResultSet) Failed() []*Job {
	var out []*Job
	for _, j := range rs.Jobs {
		if !j.Succeeded() {
			out = append(out, j)
		}
	}
	return out
}

// Notes concatenates every successful result in input order, each followed by a blank line.
func (rs *ResultSet) Notes() string {
	var b strings.Builder
	for _, j := range rs.Succeeded() {
		b.WriteString(j.Result)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Sections renders each successful result under a "# <file name>" heading.
func (rs *ResultSet) Sections() string {
	parts := make([]string, 0, len(rs.Jobs))
	for _, j := range rs.Succeeded() {
		parts = append(parts, fmt.Sprintf("# %s\n%s\n", j.DisplayName, j.Result))
	}
	return strings.Join(parts, "\n")
}

func (rs *ResultSet) Summary() BatchSummary {
	s := BatchSummary{BatchID: rs.BatchID, Total: len(rs.Jobs)}
	for _, j := range rs.Jobs {
		switch {
		case j.Succeeded():
			s.Succeeded++
			if j.Skipped {
				s.Skipped++
			}
			if j.Cached {
				s.Cached++
			}
		default:
			s.Failed++
		}
	}
	return s
}

// BatchSummary aggregates the outcome counts of a batch.
type BatchSummary struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total_files"`
	Succeeded int    `json:"processed_files"`
	Failed    int    `json:"failed_files"`
	Skipped   int    `json:"skipped_files"`
	Cached    int    `json:"cached_files"`
}

func (s BatchSummary) Ratio() string {
	return fmt.Sprintf("%d/%d", s.Succeeded, s.Total)
}

func (s BatchSummary) Message() string {
	return fmt.Sprintf("Successfully processed %s files", s.Ratio())
}
