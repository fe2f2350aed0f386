package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/repovet/repovet/internal/agents"
	"github.com/repovet/repovet/internal/cache"
	"github.com/repovet/repovet/internal/config"
	"github.com/repovet/repovet/internal/github"
	"github.com/repovet/repovet/internal/llm"
	"github.com/repovet/repovet/internal/logger"
)

var (
	agentName string
	outDir    string
	timeout   time.Duration
	noCache   bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <cv.json>",
	Short: "Analyze a CV against the candidate's public GitHub history",
	Long: `Analyze reads a CV in JSON form and runs one or all verification agents:
- authenticity: are the CV's projects real, original work?
- inflation:    do claimed skill levels match the code?
- skills:       which listed skills have code evidence at all?
- interview:    evidence-aware interview questions per skill

Each agent writes its report as JSON into the output directory.

Example:
  repovet analyze cv.json
  repovet analyze cv.json --agent inflation --out reports/
  repovet analyze cv.json --agent skills --timeout 20m`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&agentName, "agent", "all", "agent to run (all, authenticity, inflation, skills, interview)")
	analyzeCmd.Flags().StringVar(&outDir, "out", "", "output directory for reports (default: config output.dir)")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the archive cache (force fresh downloads)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cvPath := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	log, err := logger.New(jsonLogs, verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cv, err := loadCV(cvPath)
	if err != nil {
		return err
	}

	engine, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}

	runs, err := selectRuns(agentName, engine)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, r := range runs {
		log.Info("running agent", zap.String("agent", r.name))

		report, err := r.run(ctx, cv)
		if err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}

		path := filepath.Join(cfg.Output.Dir, r.name+"_report.json")
		if err := writeReport(path, report); err != nil {
			return err
		}

		if verbose {
			fmt.Fprintf(os.Stderr, "✓ %s report: %s\n", r.name, path)
		}
	}

	return nil
}

// loadCV reads and parses the CV JSON document.
func loadCV(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CV: %w", err)
	}
	var cv map[string]any
	if err := json.Unmarshal(data, &cv); err != nil {
		return nil, fmt.Errorf("parse CV JSON: %w", err)
	}
	return cv, nil
}

// buildEngine wires the GitHub client, oracle, and cache into an engine.
func buildEngine(cfg *config.Config, log *zap.Logger) (*agents.Engine, error) {
	gh := github.New(cfg.HTTP, log)

	oracle, err := llm.NewOpenAIOracle(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	retrying := llm.WithRetries(oracle, cfg.LLM.Retries, cfg.LLM.Backoff, log)

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.TTL)
	} else {
		c = cache.NewMemoryCache(cfg.Cache.MemoryTTL, 10*time.Minute)
	}

	return agents.NewEngine(gh, retrying, c, cfg, log), nil
}

type agentRun struct {
	name string
	run  func(context.Context, map[string]any) (any, error)
}

// selectRuns maps the --agent flag to the agents to execute.
func selectRuns(name string, e *agents.Engine) ([]agentRun, error) {
	all := map[string]agentRun{
		"authenticity": {name: "authenticity", run: func(ctx context.Context, cv map[string]any) (any, error) {
			return e.RunAuthenticity(ctx, cv)
		}},
		"inflation": {name: "inflation", run: func(ctx context.Context, cv map[string]any) (any, error) {
			return e.RunInflation(ctx, cv)
		}},
		"skills": {name: "skills", run: func(ctx context.Context, cv map[string]any) (any, error) {
			return e.RunSkillMap(ctx, cv)
		}},
		"interview": {name: "interview", run: func(ctx context.Context, cv map[string]any) (any, error) {
			return e.RunInterview(ctx, cv)
		}},
	}

	if name == "all" {
		return []agentRun{all["authenticity"], all["inflation"], all["skills"], all["interview"]}, nil
	}
	r, ok := all[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q (expected all, authenticity, inflation, skills, or interview)", name)
	}
	return []agentRun{r}, nil
}

// writeReport marshals a report to pretty-printed JSON on disk.
func writeReport(path string, report any) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
