package tools

import (
	"fmt"
	"log/slog"

	"github.com/duckmesh/duckrca/internal/config"
	"github.com/duckmesh/duckrca/internal/observability"
	"github.com/duckmesh/duckrca/internal/query"
	"github.com/duckmesh/duckrca/internal/tokenbudget"
)

// NewEstimator builds the token estimator selected by cfg.
func NewEstimator(cfg config.ToolsConfig) (tokenbudget.Estimator, error) {
	switch cfg.Estimator {
	case config.EstimatorTiktoken:
		estimator, err := tokenbudget.NewTiktokenEstimator("")
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding: %w", err)
		}
		return estimator, nil
	case config.EstimatorChars, "":
		return tokenbudget.CharEstimator{CharsPerToken: cfg.CharsPerToken}, nil
	default:
		return nil, fmt.Errorf("unknown token estimator %q", cfg.Estimator)
	}
}

// NewRegistryFromConfig wires a Toolset over engine using the tool settings
// in cfg and reports every budget replacement to the metrics registry.
func NewRegistryFromConfig(cfg config.Config, engine query.Engine, logger *slog.Logger) (*Registry, error) {
	estimator, err := NewEstimator(cfg.Tools)
	if err != nil {
		return nil, err
	}
	budget := tokenbudget.NewEnforcer(cfg.Tools.TokenBudget, estimator)
	budget.OnExceeded = func(contextLabel string, estimated int) {
		observability.IncrementTokenBudgetExceeded(contextLabel)
		if logger != nil {
			logger.Warn("tool output exceeded token budget",
				slog.String("context", contextLabel),
				slog.Int("estimated_tokens", estimated),
				slog.Int("token_limit", cfg.Tools.TokenBudget))
		}
	}

	toolset := NewToolset(engine, budget, logger)
	toolset.DefaultLimit = cfg.Tools.DefaultLimit
	toolset.QueryTimeout = cfg.Tools.QueryTimeout
	toolset.DataDir = cfg.Tools.DataDir
	return NewRegistry(toolset)
}
