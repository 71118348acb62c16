package invoices

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JustJay7/case-organizer/internal/query"
)

// Field length caps. Oversized input is truncated, not rejected; the
// invoice is a rendered document, not a system of record for prose.
const (
	maxClientNameLen  = 120
	maxAddressLineLen = 180
	maxItems          = 40
	maxItemNameLen    = 160
	maxDescriptionLen = 600
)

const invoiceDateLayout = "02-01-2006"

// Item is one billed line
type Item struct {
	SN          int             `json:"sn"`
	Item        string          `json:"item"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Payload is everything needed to render and file one invoice.
// InvoiceNumber may be empty, in which case the next sequence number is
// assigned. CaseYear/CaseMonth/CaseName optionally name an existing case
// folder that receives a copy of the PDF.
type Payload struct {
	InvoiceNumber  string   `json:"invoice_number"`
	InvoiceDate    string   `json:"invoice_date"`
	ClientName     string   `json:"client_name"`
	IssuerLines    []string `json:"issuer_lines"`
	RecipientLines []string `json:"recipient_lines"`
	Items          []Item   `json:"items"`
	Total          decimal.Decimal `json:"total"`
	GeneratedAt    string   `json:"generated_at"`
	CaseYear       string   `json:"case_year"`
	CaseMonth      string   `json:"case_month"`
	CaseName       string   `json:"case_name"`
}

// Normalize validates and canonicalizes the payload in place: fields are
// trimmed and capped, line items renumbered, amounts rounded to two
// places, and a zero total replaced by a positive item sum.
func (p *Payload) Normalize() error {
	p.InvoiceNumber = strings.TrimSpace(p.InvoiceNumber)

	p.InvoiceDate = strings.TrimSpace(p.InvoiceDate)
	if p.InvoiceDate == "" {
		p.InvoiceDate = time.Now().Format(invoiceDateLayout)
	}

	p.ClientName = clamp(query.CollapseWhitespace(p.ClientName), maxClientNameLen)
	if p.ClientName == "" {
		return validationf("client name is required")
	}

	p.IssuerLines = normalizeLines(p.IssuerLines)
	p.RecipientLines = normalizeLines(p.RecipientLines)

	if len(p.Items) > maxItems {
		return validationf("at most %d line items are allowed", maxItems)
	}
	items := make([]Item, 0, len(p.Items))
	for _, item := range p.Items {
		item.Item = clamp(query.CollapseWhitespace(item.Item), maxItemNameLen)
		item.Description = clamp(query.CollapseWhitespace(item.Description), maxDescriptionLen)
		if item.Item == "" && item.Description == "" && item.Amount.IsZero() {
			continue
		}
		if item.Amount.IsNegative() {
			return validationf("line item amounts must not be negative")
		}
		item.Amount = item.Amount.Round(2)
		item.SN = len(items) + 1
		items = append(items, item)
	}
	p.Items = items

	// A declared nonzero total is authoritative; the item sum only
	// fills in when no usable total was supplied.
	p.Total = p.Total.Round(2)
	if p.Total.IsZero() {
		computed := decimal.Zero
		for _, item := range p.Items {
			computed = computed.Add(item.Amount)
		}
		if computed.IsPositive() {
			p.Total = computed
		}
	}
	if p.Total.IsNegative() {
		return validationf("invoice total must not be negative")
	}

	p.CaseYear = strings.TrimSpace(p.CaseYear)
	p.CaseMonth = strings.TrimSpace(p.CaseMonth)
	p.CaseName = strings.TrimSpace(p.CaseName)

	p.GeneratedAt = time.Now().Format(time.RFC3339)
	return nil
}

func normalizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = clamp(query.CollapseWhitespace(line), maxAddressLineLen)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func clamp(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
