package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
	"github.com/pedrobono/BankMore/internal/ledger"
)

// LedgerClient is the transfer service's view of the account ledger.
type LedgerClient interface {
	// Debit posts a debit movement against accountID under requestID.
	// Replays of the same requestID succeed without moving money again.
	Debit(ctx context.Context, accountID uuid.UUID, requestID string, amount domain.Amount) error
	// ResolveAccountNumber maps a human-facing account number to its id.
	ResolveAccountNumber(ctx context.Context, number string) (uuid.UUID, error)
}

// HTTPLedgerClient calls the ledger service's JSON API with bearer
// authentication and a bounded request timeout.
type HTTPLedgerClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPLedgerClient creates a ledger client for the given base URL.
func NewHTTPLedgerClient(baseURL, token string, logger *zap.Logger) *HTTPLedgerClient {
	return &HTTPLedgerClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Debit posts the movement and maps the ledger's status codes onto the
// domain error taxonomy. Both 201 (created) and 200 (duplicate replayed)
// are success.
func (c *HTTPLedgerClient) Debit(ctx context.Context, accountID uuid.UUID, requestID string, amount domain.Amount) error {
	payload, err := json.Marshal(ledger.MovementRequest{
		RequestID: requestID,
		AccountID: accountID,
		Amount:    amount.String(),
		Direction: string(domain.DirectionDebit),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal movement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/movements", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build movement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ledger unreachable: %v", domain.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: ledger rejected movement", domain.ErrInvalidAmount)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: ledger rejected request", domain.ErrValidation)
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrAccountNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: ledger returned status %d", domain.ErrTransientUpstream, resp.StatusCode)
	default:
		return fmt.Errorf("ledger returned unexpected status %d", resp.StatusCode)
	}
}

// ResolveAccountNumber looks up an account id by number.
func (c *HTTPLedgerClient) ResolveAccountNumber(ctx context.Context, number string) (uuid.UUID, error) {
	endpoint := c.baseURL + "/api/v1/accounts/resolve?number=" + url.QueryEscape(number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build resolve request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: ledger unreachable: %v", domain.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body ledger.ResolveAccountResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return uuid.Nil, fmt.Errorf("failed to decode resolve response: %w", err)
		}
		return body.AccountID, nil
	case resp.StatusCode == http.StatusNotFound:
		return uuid.Nil, domain.ErrAccountNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return uuid.Nil, domain.ErrUnauthorized
	case resp.StatusCode >= 500:
		return uuid.Nil, fmt.Errorf("%w: ledger returned status %d", domain.ErrTransientUpstream, resp.StatusCode)
	default:
		return uuid.Nil, fmt.Errorf("ledger returned unexpected status %d", resp.StatusCode)
	}
}
