package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindDeclined      ErrorKind = "declined"
	KindNetwork       ErrorKind = "network"
	KindInvalidAmount ErrorKind = "invalid_amount"
)

// Error is a payment-collaborator failure. The kind tells the caller whether
// a retry makes sense: network errors may be retried, declines may not.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("payment %s: %s", e.Kind, e.Msg)
}

func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork
}

// AsError unwraps a payment error from an error chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

type AuthorizeRequest struct {
	OrderID       string `json:"order_id"`
	CustomerID    string `json:"customer_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

type Result struct {
	TransactionID string `json:"transaction_id"`
}

type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error)
	Refund(ctx context.Context, orderID string, amount int64) error
}

type HTTPGateway struct {
	Client  *http.Client
	Address string
}

func (g *HTTPGateway) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Address+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Msg: err.Error()}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusPaymentRequired:
		return &Error{Kind: KindDeclined, Msg: "payment declined"}
	case http.StatusUnprocessableEntity:
		return &Error{Kind: KindInvalidAmount, Msg: "invalid amount"}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &Error{Kind: KindNetwork, Msg: fmt.Sprintf("gateway unavailable (%d)", resp.StatusCode)}
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode body: %w", err)
		}
	}
	return nil
}

func (g *HTTPGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error) {
	if req.Amount <= 0 {
		return nil, &Error{Kind: KindInvalidAmount, Msg: fmt.Sprintf("amount must be positive, got %d", req.Amount)}
	}
	var res Result
	if err := g.post(ctx, "/api/payments/authorize", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type refundRequest struct {
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

func (g *HTTPGateway) Refund(ctx context.Context, orderID string, amount int64) error {
	if amount <= 0 {
		return &Error{Kind: KindInvalidAmount, Msg: fmt.Sprintf("amount must be positive, got %d", amount)}
	}
	return g.post(ctx, "/api/payments/refund", refundRequest{OrderID: orderID, Amount: amount}, nil)
}
