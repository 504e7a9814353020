package transfer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
)

type fakeService struct {
	createFunc func(ctx context.Context, req Request) (*Result, error)
}

func (f *fakeService) CreateTransfer(ctx context.Context, req Request) (*Result, error) {
	return f.createFunc(ctx, req)
}

func postTransfer(t *testing.T, handler *Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateTransferHandlerStatusCodes(t *testing.T) {
	result := &Result{TransferID: uuid.New(), CreatedAt: time.Now().UTC()}

	tests := []struct {
		name       string
		result     *Result
		err        error
		wantStatus int
	}{
		{name: "created", result: result, wantStatus: http.StatusCreated},
		{name: "replay", result: &Result{TransferID: result.TransferID, Duplicate: true}, wantStatus: http.StatusOK},
		{name: "validation", err: domain.ErrValidation, wantStatus: http.StatusBadRequest},
		{name: "invalid amount", err: domain.ErrInvalidAmount, wantStatus: http.StatusBadRequest},
		{name: "destination not found", err: domain.ErrAccountNotFound, wantStatus: http.StatusNotFound},
		{name: "in-flight duplicate", err: domain.ErrConflict, wantStatus: http.StatusConflict},
		{name: "ledger down", err: domain.ErrTransientUpstream, wantStatus: http.StatusServiceUnavailable},
		{name: "internal", err: context.DeadlineExceeded, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeService{
				createFunc: func(context.Context, Request) (*Result, error) {
					return tt.result, tt.err
				},
			}
			handler := NewHandler(service, "secret", zap.NewNop())

			body := `{"requestId":"r1","originAccountId":"` + uuid.New().String() + `","destinationAccountNumber":"1234","amount":"100.00"}`
			rec := postTransfer(t, handler, "secret", body)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestCreateTransferHandlerReplayBody(t *testing.T) {
	transferID := uuid.New()
	service := &fakeService{
		createFunc: func(context.Context, Request) (*Result, error) {
			return &Result{TransferID: transferID, Duplicate: true}, nil
		},
	}
	handler := NewHandler(service, "secret", zap.NewNop())

	rec := postTransfer(t, handler, "secret", `{"requestId":"r1"}`)

	var got CreateTransferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.TransferID != transferID {
		t.Errorf("transferId = %s, want the original %s", got.TransferID, transferID)
	}
}

func TestCreateTransferHandlerAuth(t *testing.T) {
	service := &fakeService{
		createFunc: func(context.Context, Request) (*Result, error) {
			t.Error("service must not be called without valid auth")
			return nil, nil
		},
	}
	handler := NewHandler(service, "secret", zap.NewNop())

	rec := postTransfer(t, handler, "wrong", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateTransferHandlerMalformedBody(t *testing.T) {
	handler := NewHandler(&fakeService{}, "secret", zap.NewNop())

	rec := postTransfer(t, handler, "secret", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
