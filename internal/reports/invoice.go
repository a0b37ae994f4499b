// Package reports renders printable documents for the financial screens.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/spf13/cast"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
	"unifield-backend/internal/timeutil"
)

// InvoiceData is everything printed on an invoice. Retailer is nil when no
// retailer row matches the invoice's retailer name.
type InvoiceData struct {
	Invoice  models.Row
	Retailer models.Row
}

type InvoiceService struct {
	Gateway      gateway.Gateway
	BusinessName string
	Currency     string
}

func NewInvoiceService(gw gateway.Gateway, businessName, currency string) *InvoiceService {
	return &InvoiceService{Gateway: gw, BusinessName: businessName, Currency: currency}
}

// Load fetches the invoice and the retailer it is billed to.
func (s *InvoiceService) Load(ctx context.Context, id int64) (*InvoiceData, error) {
	res, err := s.Gateway.Select(ctx, models.EntityInvoices, gateway.Query{}.Eq(models.IDField, id))
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("%w: invoices/%d", gateway.ErrNotFound, id)
	}
	data := &InvoiceData{Invoice: res.Rows[0]}

	if name := data.Invoice.String("retailer"); name != "" {
		ret, err := s.Gateway.Select(ctx, models.EntityRetailers, gateway.Query{}.Eq("name", name))
		if err != nil {
			return nil, err
		}
		if len(ret.Rows) > 0 {
			data.Retailer = ret.Rows[0]
		}
	}
	return data, nil
}

// GeneratePDF renders an A4 invoice.
func (s *InvoiceService) GeneratePDF(data *InvoiceData) ([]byte, error) {
	inv := data.Invoice
	id, _ := inv.ID()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetTitle(fmt.Sprintf("Invoice %d", id), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, s.BusinessName+" - Invoice", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", timeutil.Now().Format(timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Billed To", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, "Retailer: "+inv.String("retailer"), "LB", 0, "L", false, 0, "")
	if data.Retailer != nil {
		pdf.CellFormat(95, 7, "Location: "+data.Retailer.String("location"), "RB", 1, "L", false, 0, "")
		pdf.CellFormat(95, 7, "Contact: "+data.Retailer.String("contact_person"), "LB", 0, "L", false, 0, "")
		pdf.CellFormat(95, 7, "Phone: "+data.Retailer.String("phone"), "RB", 1, "L", false, 0, "")
	} else {
		pdf.CellFormat(95, 7, "", "RB", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Invoice Details", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(40, 7, "Invoice #", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 7, "Due Date", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 7, "Status", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 7, "Amount", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(40, 6, fmt.Sprintf("INV-%05d", id), "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, inv.String("due_date"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, inv.String("status"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, s.money(inv["amount"]), "1", 1, "R", false, 0, "")
	pdf.Ln(5)

	// Overdue invoices print the balance in red, paid ones in green
	switch strings.ToLower(inv.String("status")) {
	case "paid":
		pdf.SetFillColor(200, 255, 200)
	case "overdue":
		pdf.SetFillColor(255, 200, 200)
	default:
		pdf.SetFillColor(240, 240, 240)
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(190, 10, "Total: "+s.money(inv["amount"]), "1", 1, "C", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *InvoiceService) money(v any) string {
	return fmt.Sprintf("%s %.2f", s.Currency, cast.ToFloat64(v))
}
