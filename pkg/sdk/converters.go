package vecshift

import (
	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
	"github.com/kailas-cloud/vecshift/internal/domain/index"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
)

func toInternalPlan(p MigrationPlan) dommig.PlanParams {
	fields := make([]index.VectorField, len(p.VectorFields))
	for i, f := range p.VectorFields {
		fields[i] = index.VectorField{
			Name:           f.Name,
			Dimension:      f.Dimension,
			SpaceType:      index.SpaceType(f.SpaceType),
			Engine:         index.Engine(f.Engine),
			M:              f.M,
			EFConstruction: f.EFConstruction,
		}
		if f.Engine != "" {
			fields[i].Method = "hnsw"
		}
	}
	return dommig.PlanParams{
		Source:               p.Source,
		Target:               p.Target,
		Alias:                p.Alias,
		VectorFields:         fields,
		Settings:             p.Settings,
		CountTolerance:       p.CountTolerance,
		SampleSize:           p.SampleSize,
		SampleMatchThreshold: p.SampleMatchThreshold,
		SampleFilter:         p.SampleFilter,
		SampleSeed:           p.SampleSeed,
		SnapshotRepository:   p.SnapshotRepository,
		AllowReplace:         p.AllowReplace,
	}
}

func fromInternalRun(r *dommig.Run) Run {
	out := Run{
		ID:             r.ID,
		State:          State(r.State),
		SnapshotID:     r.SnapshotID,
		LastError:      r.LastError,
		RollbackFailed: r.RollbackFailed,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		FinishedAt:     r.FinishedAt,
	}
	if r.Plan != nil {
		out.Source = r.Plan.Source()
		out.Target = r.Plan.Target()
		out.Alias = r.Plan.Alias()
	}
	if len(r.Stages) > 0 {
		out.Stages = make([]Stage, len(r.Stages))
		for i, s := range r.Stages {
			out.Stages[i] = Stage{
				State:      State(s.State),
				StartedAt:  s.StartedAt,
				FinishedAt: s.FinishedAt,
				Outcome:    s.Outcome,
				Error:      s.Error,
			}
		}
	}
	if rep := r.Report; rep != nil {
		out.Report = &Report{
			OK:            rep.OK,
			SourceCount:   rep.SourceCount,
			TargetCount:   rep.TargetCount,
			AllowedDelta:  rep.AllowedDelta,
			SampleSize:    rep.SampleSize,
			Matched:       rep.Matched,
			MatchRate:     rep.MatchRate,
			MismatchedIDs: rep.MismatchedIDs,
			Reasons:       rep.Reasons,
		}
	}
	return out
}

func fromInternalEntry(e domaudit.Entry) AuditEntry {
	return AuditEntry{
		ID:        e.ID,
		RunID:     e.RunID,
		Stage:     e.Stage,
		Outcome:   string(e.Outcome),
		Detail:    e.Detail,
		Fields:    e.Fields,
		Timestamp: e.Timestamp,
	}
}
