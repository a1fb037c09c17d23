package scheduling

import (
	"context"

	"clinic-scheduler/internal/model"
)

// StatsAggregator counts a caller's appointments by status straight from the
// store, without caching.
type StatsAggregator struct {
	repo Repository
}

func NewStatsAggregator(repo Repository) *StatsAggregator {
	return &StatsAggregator{repo: repo}
}

func (s *StatsAggregator) For(ctx context.Context, c Caller) (model.Stats, error) {
	var st model.Stats
	counts := []struct {
		status model.Status
		dst    *int
	}{
		{"", &st.Total},
		{model.StatusScheduled, &st.Scheduled},
		{model.StatusCompleted, &st.Completed},
		{model.StatusCancelled, &st.Cancelled},
		{model.StatusNoShow, &st.NoShow},
	}
	for _, q := range counts {
		n, err := s.repo.Count(ctx, c.scope(Filter{Status: q.status}))
		if err != nil {
			return model.Stats{}, internal("count appointments", err)
		}
		*q.dst = n
	}
	return st, nil
}
