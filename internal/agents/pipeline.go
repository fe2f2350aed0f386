package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/repovet/repovet/internal/index"
	"github.com/repovet/repovet/internal/model"
)

// State is the carrier threaded through one analysis run. Each stage reads
// what earlier stages produced and fills in its own fields; the assemble
// stage turns the final state into a report.
type State struct {
	CV       map[string]any
	Username string

	Referenced  []string
	Skills      []string
	Claims      []model.SkillClaim
	LevelClaims map[string]model.LevelClaim

	ReposAll  []model.RepoMeta
	ReposDeep []model.RepoMeta

	Chunks []model.Chunk
	Index  *index.Index
	// Slices maps each deep repo to its [start, end) range in Chunks.
	Slices map[string][2]int

	Signals map[string]map[string]any

	RepoDecisions  map[string]model.RepoDecision
	SkillDecisions map[string]model.SkillDecision
	Support        map[string]model.SkillSupport
	Questions      map[string]model.SkillQuestions
	Summary        model.InterviewSummary

	Meta model.RunMeta
}

// Stage is one named step of an analysis pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context, st *State) error
}

// Pipeline runs stages in order against a shared state. A stage error
// aborts the run; stages signal degraded-but-usable situations through
// state metadata instead of errors.
type Pipeline struct {
	name   string
	stages []Stage
	log    *zap.Logger
}

// NewPipeline assembles a named pipeline.
func NewPipeline(name string, log *zap.Logger, stages ...Stage) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{name: name, stages: stages, log: log}
}

// Run executes every stage in order.
func (p *Pipeline) Run(ctx context.Context, st *State) error {
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.log.Debug("stage running", zap.String("pipeline", p.name), zap.String("stage", s.Name))
		if err := s.Run(ctx, st); err != nil {
			return fmt.Errorf("%s/%s: %w", p.name, s.Name, err)
		}
	}
	return nil
}
