// Package llm builds the optional reasoning advisor.
//
// The factory creates an advisor based on provider configuration.
// Currently supports:
//   - Anthropic Claude
//
// Without an API key no advisor is built and the pipeline runs on its
// rule-based steps only.
package llm
