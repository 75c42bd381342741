package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one trigger call including the whole engine run
const DefaultTimeout = 2 * time.Minute

// maxErrorBody caps how much of a failed response is kept in the error
const maxErrorBody = 1024

// Client calls the engine's process endpoint with the shared secret
type Client struct {
	httpClient *http.Client
	url        string
	secret     string
	logger     zerolog.Logger
}

// NewClient creates a trigger client for the given endpoint
func NewClient(url, secret string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		secret:     secret,
		logger:     logger.With().Str("component", "trigger_client").Logger(),
	}
}

// Trigger asks the engine to process everything due now and returns its summary
func (c *Client) Trigger(ctx context.Context) (*domain.RunSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("trigger returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var summary domain.RunSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to decode run summary: %w", err)
	}

	event := c.logger.Info()
	if len(summary.Errors) > 0 {
		event = c.logger.Warn()
	}
	event.
		Str("run_id", summary.RunID.String()).
		Int("processed", summary.ProcessedCount).
		Int("transactions", summary.CreatedTransactionCount).
		Int("alerts", summary.CreatedAlertCount).
		Int("deactivated", summary.DeactivatedCount).
		Int("skipped", summary.SkippedCount).
		Int("errors", len(summary.Errors)).
		Int64("duration_ms", summary.DurationMs).
		Msg("Recurring run triggered")

	for _, templateErr := range summary.Errors {
		c.logger.Warn().
			Int64("template_id", templateErr.TemplateID).
			Str("reason", templateErr.Reason).
			Msg("Template failed during run")
	}

	return &summary, nil
}
