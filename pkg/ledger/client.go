package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/resoldhq/ledgermirror/pkg/models"
	"github.com/resoldhq/ledgermirror/pkg/utils"
)

const (
	defaultCallTimeout = 15 * time.Second
	maxRetries         = 2
	initialBackoff     = 500 * time.Millisecond
)

// HTTPClient talks to the external general-ledger provider over its
// REST API. Every call carries an explicit timeout, retries retryable
// failures with exponential backoff, and runs behind a circuit breaker
// so a degraded provider cannot stall diagnostics.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	realmID    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewHTTPClient(baseURL, apiKey, realmID string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		realmID: realmID,
		httpClient: &http.Client{
			Timeout: defaultCallTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "ledger-provider",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
		}),
	}
}

// EnableHTTPDebug dumps every request and response to stdout.
func (c *HTTPClient) EnableHTTPDebug() {
	c.httpClient.Transport = utils.DebugRoundTripper()
}

func (c *HTTPClient) ListAccounts(ctx context.Context) ([]Account, error) {
	var out struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/"+c.realmID+"/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

func (c *HTTPClient) PostJournalEntry(ctx context.Context, entry *models.JournalEntry) (string, error) {
	if !entry.Balanced() {
		return "", fmt.Errorf("refusing to post unbalanced entry: debits %d != credits %d",
			entry.TotalDebits(), entry.TotalCredits())
	}

	var out wireEntryResponse
	if err := c.do(ctx, http.MethodPost, "/v1/"+c.realmID+"/journalentries", toWireEntry(entry), &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *HTTPClient) GetJournalEntry(ctx context.Context, externalID string) (*models.JournalEntry, string, error) {
	var out wireEntryResponse
	err := c.do(ctx, http.MethodGet, "/v1/"+c.realmID+"/journalentries/"+externalID, nil, &out)
	if err != nil {
		var apiErr *models.ExternalApiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, "", nil
		}
		return nil, "", err
	}

	entry := &models.JournalEntry{
		Date:     out.Entry.Date,
		Currency: out.Entry.Currency,
		Memo:     out.Entry.Memo,
	}
	for _, wl := range out.Entry.Lines {
		amount, err := models.ToMinorUnits(wl.Amount, out.Entry.Currency)
		if err != nil {
			return nil, "", fmt.Errorf("provider returned malformed amount %q: %w", wl.Amount, err)
		}
		line := models.JournalLine{AccountID: wl.AccountID, Description: wl.Description}
		if wl.Posting == "debit" {
			line.Debit = amount
		} else {
			line.Credit = amount
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, out.TxnDate, nil
}

func (c *HTTPClient) ConnectionStatus(ctx context.Context) (models.ConnectionStatus, error) {
	var out models.ConnectionStatus
	if err := c.do(ctx, http.MethodGet, "/v1/"+c.realmID+"/connection", nil, &out); err != nil {
		var apiErr *models.ExternalApiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return models.ConnectionStatus{Connected: false}, nil
		}
		return models.ConnectionStatus{}, err
	}
	return out, nil
}

// do executes one API call with retry and breaker protection, decoding
// a JSON response into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = c.doOnce(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}

		var apiErr *models.ExternalApiError
		if !errors.As(lastErr, &apiErr) || !apiErr.Retryable {
			return lastErr
		}

		if attempt < maxRetries {
			wait := initialBackoff << attempt
			log.Warn().Err(lastErr).Str("path", path).Dur("wait", wait).Msg("retrying ledger call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body, out interface{}) error {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request: %w", err)
			}
			reader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// transport failures and timeouts are retryable
			return nil, &models.ExternalApiError{Status: 0, Message: err.Error(), Retryable: true}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &models.ExternalApiError{Status: resp.StatusCode, Message: err.Error(), Retryable: true}
		}

		if resp.StatusCode >= 400 {
			return nil, &models.ExternalApiError{
				Status:    resp.StatusCode,
				Message:   string(data),
				Retryable: resp.StatusCode >= 500,
			}
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &models.ExternalApiError{Status: 0, Message: err.Error(), Retryable: true}
		}
		return err
	}

	if out != nil {
		if err := json.Unmarshal(result.([]byte), out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
