package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/punchamoorthee/payflow/internal/domain"
)

var exportHeader = []string{
	"Payment ID", "Service ID", "Service Name", "Amount",
	"User ID", "Order ID", "Status", "Created At",
}

// Export is a rendered CSV document and the filename to offer it under.
type Export struct {
	Filename string
	Data     []byte
}

// ExportPayment renders one payment as CSV.
func (w *Workflow) ExportPayment(ctx context.Context, id string) (Export, error) {
	p, err := w.payments.GetPayment(ctx, id)
	if err != nil {
		return Export{}, err
	}
	data, err := w.renderCSV(ctx, []domain.Payment{p})
	if err != nil {
		return Export{}, err
	}
	return Export{Filename: fmt.Sprintf("payment_%s.csv", id), Data: data}, nil
}

// ExportAllPayments renders every payment, in creation order.
func (w *Workflow) ExportAllPayments(ctx context.Context) (Export, error) {
	all, err := w.payments.ListPayments(ctx)
	if err != nil {
		return Export{}, err
	}
	data, err := w.renderCSV(ctx, all)
	if err != nil {
		return Export{}, err
	}
	name := fmt.Sprintf("payments_%s.csv", w.now().UTC().Format("20060102_150405"))
	return Export{Filename: name, Data: data}, nil
}

func (w *Workflow) renderCSV(ctx context.Context, payments []domain.Payment) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(exportHeader); err != nil {
		return nil, err
	}
	names := make(map[string]string)
	for _, p := range payments {
		name, ok := names[p.ServiceID]
		if !ok {
			name = w.serviceName(ctx, p.ServiceID)
			names[p.ServiceID] = name
		}
		row := []string{
			p.PaymentID,
			p.ServiceID,
			name,
			p.Amount.StringFixed(2),
			p.UserID,
			p.OrderID,
			string(p.Status),
			p.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return buf.Bytes(), nil
}
