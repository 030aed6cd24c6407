package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mimisupply/delivery/internal/types/order"
)

// Notifier is informed of status transitions. It is fire-and-forget: callers
// log its errors and never fail the transition over them.
type Notifier interface {
	StatusChanged(ctx context.Context, o *order.Order, from, to order.Status) error
}

type statusEvent struct {
	OrderID    string       `json:"order_id"`
	CustomerID string       `json:"customer_id"`
	From       order.Status `json:"from"`
	To         order.Status `json:"to"`
	At         time.Time    `json:"at"`
}

type HTTPNotifier struct {
	Client  *http.Client
	Address string
}

func (n *HTTPNotifier) StatusChanged(ctx context.Context, o *order.Order, from, to order.Status) error {
	ev := statusEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		From:       from,
		To:         to,
		At:         time.Now().UTC(),
	}
	buf, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Address+"/api/notifications/order-status", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
