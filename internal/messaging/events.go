// Package messaging provides the broker I/O discipline shared by the
// settlement services: durable topic-exchange topology, a confirming
// producer, and a manually acknowledging consumer with bounded retries and a
// dead-letter queue.
package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Exchange is the topic exchange all settlement events flow through.
const Exchange = "bankmore.settlement"

// DeadLetterExchange receives deliveries that exhausted their retries.
const DeadLetterExchange = "bankmore.settlement.dlx"

// DeadLetterQueue collects dead-lettered deliveries for operator inspection.
const DeadLetterQueue = "bankmore.settlement.dlq"

// Topics and the durable queues bound to them. Routing keys are suffixed
// with the account id (see RoutingKey), so bindings use a wildcard: this
// keys messages by account, preserving per-account ordering instead of the
// random per-message keys the broker would otherwise shuffle on.
const (
	TopicTransferCompleted      = "settlement.transfer.completed"
	QueueTransferCompleted      = "fee-service.transfer-completed"
	BindingKeyTransferCompleted = TopicTransferCompleted + ".*"

	TopicFeeAssessed      = "settlement.fee.assessed"
	QueueFeeAssessed      = "ledger-service.fee-assessed"
	BindingKeyFeeAssessed = TopicFeeAssessed + ".*"
)

// RoutingKey keys a topic by account id.
func RoutingKey(topic string, accountID uuid.UUID) string {
	return topic + "." + accountID.String()
}

// TransferCompleted announces that a transfer was debited and committed.
type TransferCompleted struct {
	RequestID       string    `json:"requestId"`
	OriginAccountID uuid.UUID `json:"originAccountId"`
}

// FeeAssessed announces that a fee was computed and recorded for a transfer.
type FeeAssessed struct {
	AccountID    uuid.UUID `json:"accountId"`
	FeeAmount    string    `json:"feeAmount"`
	FeeRequestID string    `json:"feeRequestId"`
}

// DecodeTransferCompleted parses and validates a transfer-completed payload.
func DecodeTransferCompleted(body []byte) (*TransferCompleted, error) {
	var event TransferCompleted
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transfer-completed event: %w", err)
	}

	if event.RequestID == "" {
		return nil, fmt.Errorf("transfer-completed event: request id is required")
	}
	if event.OriginAccountID == uuid.Nil {
		return nil, fmt.Errorf("transfer-completed event: origin account id is required")
	}

	return &event, nil
}

// DecodeFeeAssessed parses and validates a fee-assessed payload.
func DecodeFeeAssessed(body []byte) (*FeeAssessed, error) {
	var event FeeAssessed
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fee-assessed event: %w", err)
	}

	if event.AccountID == uuid.Nil {
		return nil, fmt.Errorf("fee-assessed event: account id is required")
	}
	if event.FeeAmount == "" {
		return nil, fmt.Errorf("fee-assessed event: fee amount is required")
	}
	if event.FeeRequestID == "" {
		return nil, fmt.Errorf("fee-assessed event: fee request id is required")
	}

	return &event, nil
}
