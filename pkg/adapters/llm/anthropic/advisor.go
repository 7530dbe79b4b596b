package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// MaxAdvice caps the recommendations taken from one reply
const MaxAdvice = 5

const systemPrompt = "You are a Spark performance engineer. Given the findings of an automated " +
	"analysis of a Spark job, reply with at most five additional, concrete optimization " +
	"recommendations, one per line, without numbering or commentary. Do not repeat " +
	"recommendations that were already made."

// CallRecorder receives one record per API call
type CallRecorder interface {
	RecordLLMCall(model, status string, latency time.Duration, inputTokens, outputTokens int64)
}

// Config holds advisor configuration
type Config struct {
	APIKey         string
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
	// Options are appended to the client options, e.g. a base URL
	Options []option.RequestOption
}

// Advisor asks Claude for recommendations beyond the rule-based ones
type Advisor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	recorder  CallRecorder
	logger    *zap.Logger
}

// NewAdvisor creates an Anthropic-backed advisor. recorder may be nil.
func NewAdvisor(cfg Config, recorder CallRecorder, logger *zap.Logger) (*Advisor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	opts = append(opts, cfg.Options...)

	return &Advisor{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		recorder:  recorder,
		logger:    logger,
	}, nil
}

// Advise implements ports.Advisor
func (a *Advisor) Advise(ctx context.Context, state domain.JobState) ([]string, error) {
	start := time.Now()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(state))),
		},
	})
	if err != nil {
		a.record("failure", time.Since(start), 0, 0)
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	a.record("success", time.Since(start), msg.Usage.InputTokens, msg.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
			text.WriteString("\n")
		}
	}

	advice := ParseAdvice(text.String(), state.Recommendations)
	a.logger.Debug("advisor replied",
		zap.String("job_id", state.JobID),
		zap.String("model", a.model),
		zap.Int("recommendations", len(advice)),
		zap.Int64("output_tokens", msg.Usage.OutputTokens))

	return advice, nil
}

func (a *Advisor) record(status string, latency time.Duration, in, out int64) {
	if a.recorder != nil {
		a.recorder.RecordLLMCall(a.model, status, latency, in, out)
	}
}

// BuildPrompt renders the findings of a run as the user message
func BuildPrompt(state domain.JobState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Job: %s", state.JobID)
	if state.JobName != "" {
		fmt.Fprintf(&b, " (%s)", state.JobName)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Source: %s", state.SourceType)
	if state.TableName != "" {
		fmt.Fprintf(&b, ", table %s", state.TableName)
	}
	b.WriteString("\n")
	if state.Schema.Known() {
		fmt.Fprintf(&b, "Table size: %d rows, %.2f GB, %d columns\n",
			state.Schema.RowCount, state.Schema.SizeGB, len(state.Schema.Columns))
	}
	fmt.Fprintf(&b, "Partitions: %d (%s)\n", state.PartitionCount, state.PartitionStrategy)
	fmt.Fprintf(&b, "Skew ratio: %.2f\n", state.SkewRatio)
	fmt.Fprintf(&b, "Execution time: %d ms, CPU utilization: %.2f, memory used: %d MB\n",
		state.ExecutionTimeMs, state.CPUUtilization, state.MemoryUsedMB)

	if len(state.Issues) > 0 {
		b.WriteString("\nIssues:\n")
		for _, issue := range state.Issues {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", issue.Severity, issue.Type, issue.Description)
		}
	}
	if len(state.Recommendations) > 0 {
		b.WriteString("\nRecommendations already made:\n")
		for _, rec := range state.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	return b.String()
}

// ParseAdvice extracts one recommendation per non-empty line, dropping list
// markers and anything already recommended. At most MaxAdvice are returned.
func ParseAdvice(text string, existing []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[strings.ToLower(rec)] = struct{}{}
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(trimMarker(strings.TrimSpace(line)))
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
		if len(out) == MaxAdvice {
			break
		}
	}
	return out
}

// trimMarker strips a leading "-", "*" or "1." style list marker
func trimMarker(line string) string {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return line[2:]
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return line[i+1:]
	}
	return line
}

var _ ports.Advisor = (*Advisor)(nil)
