package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aescanero/sparkcopilot/internal/agents"
	"github.com/aescanero/sparkcopilot/internal/pipeline"
)

// NewGraphCmd creates the "graph" subcommand.
func NewGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the compiled analysis pipeline",
		Args:  cobra.NoArgs,
		RunE:  runGraph,
	}

	addPipelineFlags(cmd)
	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runGraph(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")

	opts := pipelineOptions(cmd)
	plan, err := pipeline.Standard(agents.Config{}, opts, nil)
	if err != nil {
		return exitError(exitValidation, "compiling pipeline: %v", err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "text":
		_, err = fmt.Fprint(out, pipeline.Describe(plan))
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(map[string]any{
			"name":        plan.Name(),
			"entry":       plan.Entry(),
			"steps":       plan.Steps(),
			"transitions": plan.Transitions(),
		})
	default:
		return exitError(exitValidation, "unknown format %q (must be text or json)", format)
	}
	return err
}

// addPipelineFlags registers the flags shared by the offline commands
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("skew-routing", false, "Route skewed jobs through mitigation_agent")
	cmd.Flags().Float64("skew-threshold", agents.DefaultSkewThreshold, "Skew ratio above which a job is skewed")
	cmd.Flags().Int("max-steps", 32, "Maximum step invocations per run (0 for no bound)")
}

func pipelineOptions(cmd *cobra.Command) pipeline.Options {
	skewRouting, _ := cmd.Flags().GetBool("skew-routing")
	skewThreshold, _ := cmd.Flags().GetFloat64("skew-threshold")
	maxSteps, _ := cmd.Flags().GetInt("max-steps")

	return pipeline.Options{
		MaxSteps:      maxSteps,
		SkewRouting:   skewRouting,
		SkewThreshold: skewThreshold,
	}
}
