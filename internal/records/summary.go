package records

import (
	"context"
	"fmt"

	"linedash-backend/internal/query"
)

// Summary stages run strictly in order; a stage only runs once the previous
// one succeeded.
const (
	StageInspect  = "inspect"
	StageFilter   = "filter-build"
	StageStats    = "fetch-stats"
	StageHourly   = "fetch-hourly"
	StageMachines = "fetch-machines"
)

// downtime is estimated against one 8-hour shift.
const shiftHours = 8

type summaryState struct {
	filter   query.Filter
	stats    Stats
	hourly   [24]HourBucket
	machines []MachineRollup
	// done short-circuits the remaining stages.
	done bool
}

type stage struct {
	name string
	run  func(ctx context.Context, st *summaryState) error
}

func runStages(ctx context.Context, st *summaryState, stages []stage) error {
	for _, s := range stages {
		if st.done {
			return nil
		}
		if err := s.run(ctx, st); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// FetchProductionSummary computes the dashboard summary for the filter. A
// filter matching no rows yields an all-zero summary.
func (a *Aggregator) FetchProductionSummary(ctx context.Context, f query.Filter) (*ProductionSummary, error) {
	st := &summaryState{filter: f}
	stages := []stage{
		{name: StageInspect, run: func(ctx context.Context, st *summaryState) error {
			return ctx.Err()
		}},
		{name: StageFilter, run: func(ctx context.Context, st *summaryState) error {
			// Surface filter errors before any query is issued.
			_, err := a.builder.Count(st.filter)
			return err
		}},
		{name: StageStats, run: func(ctx context.Context, st *summaryState) error {
			stats, err := a.FetchStats(ctx, st.filter)
			if err != nil {
				return err
			}
			st.stats = stats
			st.done = stats.Total == 0
			return nil
		}},
		{name: StageHourly, run: func(ctx context.Context, st *summaryState) error {
			hourly, err := a.FetchHourly(ctx, st.filter)
			if err != nil {
				return err
			}
			st.hourly = hourly
			return nil
		}},
		{name: StageMachines, run: func(ctx context.Context, st *summaryState) error {
			machines, err := a.FetchMachineRollups(ctx, st.filter)
			if err != nil {
				return err
			}
			st.machines = machines
			return nil
		}},
	}
	if err := runStages(ctx, st, stages); err != nil {
		return nil, err
	}
	return a.summarize(st), nil
}

func (a *Aggregator) summarize(st *summaryState) *ProductionSummary {
	out := &ProductionSummary{
		Machines: []MachineRollup{},
		Timeline: []HourBucket{},
	}
	if st.stats.Total == 0 {
		return out
	}
	out.TotalProduction = st.stats.Total
	out.Pass = st.stats.Pass
	out.Fail = st.stats.Fail
	out.Efficiency = 100
	if a.builder.Schema().HasResult() {
		out.Efficiency = percent(st.stats.Pass, st.stats.Total)
	}
	if st.stats.Fail > 0 {
		out.DowntimeHours = round1(float64(st.stats.Fail) / float64(st.stats.Total) * shiftHours)
	}
	if st.machines != nil {
		out.Machines = st.machines
	}
	for _, m := range out.Machines {
		if m.Status == StatusActive {
			out.ActiveMachines++
		}
	}
	out.Timeline = append(out.Timeline, st.hourly[TimelineStart:TimelineEnd+1]...)
	return out
}
