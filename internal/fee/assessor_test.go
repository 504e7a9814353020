package fee

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
	"github.com/pedrobono/BankMore/internal/idempotency"
	"github.com/pedrobono/BankMore/internal/messaging"
	"github.com/pedrobono/BankMore/internal/outbox"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*idempotency.Record)}
}

func (m *memoryStore) Lookup(_ context.Context, scope, requestID string) (*idempotency.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[scope+"/"+requestID], nil
}

func (m *memoryStore) Record(_ context.Context, rec *idempotency.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rec.Scope + "/" + rec.RequestID
	if _, ok := m.records[key]; ok {
		return idempotency.ErrAlreadyExists
	}
	m.records[key] = rec
	return nil
}

type fakeFeeRepo struct {
	mu        sync.Mutex
	created   []*domain.FeeRecord
	createErr error
}

func (f *fakeFeeRepo) Create(_ context.Context, record *domain.FeeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, record)
	return nil
}

type fakeOutboxRepo struct {
	mu      sync.Mutex
	created []*outbox.Event
}

func (f *fakeOutboxRepo) Create(_ context.Context, event *outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestAssessor(records *fakeFeeRepo, events *fakeOutboxRepo, store *memoryStore) *Assessor {
	return NewAssessor(records, events, store, NewFlatSchedule(""), passthroughTx{}, zap.NewNop())
}

func transferCompletedBody(t *testing.T, requestID string, accountID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(messaging.TransferCompleted{RequestID: requestID, OriginAccountID: accountID})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestFeeRequestIDIsDeterministic(t *testing.T) {
	first := FeeRequestID("r1")
	second := FeeRequestID("r1")
	other := FeeRequestID("r2")

	if first != second {
		t.Errorf("FeeRequestID(r1) differs between calls: %s vs %s", first, second)
	}
	if first == other {
		t.Error("different transfer request ids must derive different fee request ids")
	}
	if first == "r1" {
		t.Error("fee request id must be a distinct derived key, not the input")
	}
}

func TestHandleTransferCompletedAssessesOnce(t *testing.T) {
	records := &fakeFeeRepo{}
	events := &fakeOutboxRepo{}
	assessor := newTestAssessor(records, events, newMemoryStore())

	accountID := uuid.New()
	body := transferCompletedBody(t, "r1", accountID)

	if err := assessor.HandleTransferCompleted(context.Background(), body); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	// Redelivery of the same event.
	if err := assessor.HandleTransferCompleted(context.Background(), body); err != nil {
		t.Fatalf("redelivery must acknowledge cleanly, got: %v", err)
	}

	if len(records.created) != 1 {
		t.Fatalf("fee records = %d, want exactly 1", len(records.created))
	}
	if len(events.created) != 1 {
		t.Fatalf("outbox events = %d, want exactly 1: redelivery must not re-publish", len(events.created))
	}

	record := records.created[0]
	if record.AccountID != accountID {
		t.Errorf("fee account = %s, want %s", record.AccountID, accountID)
	}
	if record.Amount != DefaultFlatFee {
		t.Errorf("fee amount = %s, want %s", record.Amount, DefaultFlatFee)
	}
	if record.RequestID != FeeRequestID("r1") {
		t.Errorf("fee request id = %s, want deterministic derivation of r1", record.RequestID)
	}
}

func TestHandleTransferCompletedEmitsDerivedKey(t *testing.T) {
	records := &fakeFeeRepo{}
	events := &fakeOutboxRepo{}
	assessor := newTestAssessor(records, events, newMemoryStore())

	accountID := uuid.New()
	if err := assessor.HandleTransferCompleted(context.Background(), transferCompletedBody(t, "r1", accountID)); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}

	var assessed messaging.FeeAssessed
	if err := json.Unmarshal(events.created[0].Payload, &assessed); err != nil {
		t.Fatalf("failed to decode outbox payload: %v", err)
	}
	if assessed.FeeRequestID != FeeRequestID("r1") {
		t.Errorf("event fee request id = %s, want %s", assessed.FeeRequestID, FeeRequestID("r1"))
	}
	if assessed.AccountID != accountID {
		t.Errorf("event account = %s, want %s", assessed.AccountID, accountID)
	}
	if assessed.FeeAmount != DefaultFlatFee.String() {
		t.Errorf("event amount = %s, want %s", assessed.FeeAmount, DefaultFlatFee)
	}
	if events.created[0].Topic != messaging.TopicFeeAssessed {
		t.Errorf("outbox topic = %s, want %s", events.created[0].Topic, messaging.TopicFeeAssessed)
	}
}

func TestHandleTransferCompletedConcurrentDuplicateSkips(t *testing.T) {
	// The guard has no record yet, but the fee table's unique request id
	// trips: another worker committed between our lookup and our insert.
	records := &fakeFeeRepo{createErr: domain.ErrDuplicateRequest}
	events := &fakeOutboxRepo{}
	assessor := newTestAssessor(records, events, newMemoryStore())

	err := assessor.HandleTransferCompleted(context.Background(), transferCompletedBody(t, "r1", uuid.New()))
	if err != nil {
		t.Fatalf("duplicate fee insert must acknowledge cleanly, got: %v", err)
	}
	if len(events.created) != 0 {
		t.Error("losing the race must not enqueue a second event")
	}
}

func TestHandleTransferCompletedRejectsMalformedEvent(t *testing.T) {
	assessor := newTestAssessor(&fakeFeeRepo{}, &fakeOutboxRepo{}, newMemoryStore())

	if err := assessor.HandleTransferCompleted(context.Background(), []byte(`{`)); err == nil {
		t.Error("malformed body must fail so the delivery is retried and dead-lettered")
	}
	if err := assessor.HandleTransferCompleted(context.Background(), []byte(`{"requestId":""}`)); err == nil {
		t.Error("event without a request id must fail")
	}
}

func TestHandleTransferCompletedPropagatesStorageFailure(t *testing.T) {
	records := &fakeFeeRepo{createErr: errors.New("connection reset")}
	assessor := newTestAssessor(records, &fakeOutboxRepo{}, newMemoryStore())

	err := assessor.HandleTransferCompleted(context.Background(), transferCompletedBody(t, "r1", uuid.New()))
	if err == nil {
		t.Error("storage failure must propagate so the delivery stays unacked")
	}
}

func TestFlatScheduleConfiguredAmount(t *testing.T) {
	schedule := NewFlatSchedule("3.50")
	if got := schedule.FeeFor(TransferInfo{RequestID: "r1"}); got != "3.50" {
		t.Errorf("fee = %s, want 3.50", got)
	}

	fallback := NewFlatSchedule("")
	if got := fallback.FeeFor(TransferInfo{RequestID: "r1"}); got != DefaultFlatFee {
		t.Errorf("fee = %s, want default %s", got, DefaultFlatFee)
	}
}
