package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aescanero/sparkcopilot/internal/agents"
	"github.com/aescanero/sparkcopilot/internal/pipeline"
	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// NewAnalyzeCmd creates the "analyze" subcommand.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a job spec file without starting the service",
		Args:  cobra.NoArgs,
		RunE:  runAnalyze,
	}

	cmd.Flags().StringP("file", "f", "", "Job spec as a YAML or JSON file (- for stdin)")
	cmd.Flags().StringP("output", "o", "yaml", "Output format: yaml | json")
	cmd.Flags().Duration("timeout", time.Minute, "Analysis timeout")
	addPipelineFlags(cmd)
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// report is the analysis summary printed by analyze
type report struct {
	JobID             string                   `yaml:"job_id" json:"job_id"`
	SourceType        domain.SourceType        `yaml:"source_type" json:"source_type"`
	TableName         string                   `yaml:"table_name" json:"table_name"`
	PartitionStrategy domain.PartitionStrategy `yaml:"partition_strategy" json:"partition_strategy"`
	SkewRatio         float64                  `yaml:"skew_ratio" json:"skew_ratio"`
	OptimizationScore float64                  `yaml:"optimization_score" json:"optimization_score"`
	EstimatedCostUSD  float64                  `yaml:"estimated_cost_usd" json:"estimated_cost_usd"`
	Issues            []domain.Issue           `yaml:"issues" json:"issues"`
	Recommendations   []string                 `yaml:"recommendations" json:"recommendations"`
}

func newReport(s domain.JobState) report {
	issues := s.Issues
	if issues == nil {
		issues = []domain.Issue{}
	}
	recs := s.Recommendations
	if recs == nil {
		recs = []string{}
	}

	return report{
		JobID:             s.JobID,
		SourceType:        s.SourceType,
		TableName:         s.TableName,
		PartitionStrategy: s.PartitionStrategy,
		SkewRatio:         s.SkewRatio,
		OptimizationScore: s.OptimizationScore(),
		EstimatedCostUSD:  agents.EstimateCost(s),
		Issues:            issues,
		Recommendations:   recs,
	}
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	output, _ := cmd.Flags().GetString("output")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if output != "yaml" && output != "json" {
		return exitError(exitValidation, "unknown output format %q (must be yaml or json)", output)
	}

	spec, err := readSpec(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return exitError(exitValidation, "%v", err)
	}

	plan, err := pipeline.Standard(agents.Config{}, pipelineOptions(cmd), nil)
	if err != nil {
		return exitError(exitValidation, "compiling pipeline: %v", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	final, err := plan.Run(ctx, domain.NewJobState(spec.WithDefaults(), time.Now()))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return exitError(exitTimeout, "analysis timed out after %s", timeout)
		}
		return exitError(exitRuntime, "analysis failed: %v", err)
	}

	out := cmd.OutOrStdout()
	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newReport(final))
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(newReport(final)); err != nil {
		return err
	}
	return enc.Close()
}

// readSpec decodes a job spec. JSON documents are valid YAML, so one
// decoder serves both.
func readSpec(stdin io.Reader, path string) (domain.JobSpec, error) {
	var spec domain.JobSpec

	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return spec, exitError(exitFileNotFound, "job spec not found: %s", path)
			}
			return spec, exitError(exitFileNotFound, "opening job spec: %v", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return spec, exitError(exitInputParse, "parsing job spec: %v", err)
	}
	return spec, nil
}
