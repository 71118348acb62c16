package invoices

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/JustJay7/case-organizer/internal/storage"
)

// Renderer turns a normalized payload into a PDF document and suggests
// a filename for it.
type Renderer interface {
	Render(p Payload) (pdf []byte, fileName string, err error)
}

// PDFRenderer is the default Renderer
type PDFRenderer struct{}

// NewPDFRenderer creates a PDFRenderer
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render lays out a single-page A4 invoice
func (r *PDFRenderer) Render(p Payload) ([]byte, string, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Invoice "+p.InvoiceNumber, true)
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 12, "INVOICE", "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(95, 6, "Invoice No: "+p.InvoiceNumber, "", 0, "L", false, 0, "")
	doc.CellFormat(95, 6, "Date: "+p.InvoiceDate, "", 1, "R", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(95, 6, "From", "", 0, "L", false, 0, "")
	doc.CellFormat(95, 6, "Billed To", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	rows := len(p.IssuerLines)
	if len(p.RecipientLines)+1 > rows {
		rows = len(p.RecipientLines) + 1
	}
	for i := 0; i < rows; i++ {
		left, right := "", ""
		if i < len(p.IssuerLines) {
			left = p.IssuerLines[i]
		}
		if i == 0 {
			right = p.ClientName
		} else if i-1 < len(p.RecipientLines) {
			right = p.RecipientLines[i-1]
		}
		doc.CellFormat(95, 5, left, "", 0, "L", false, 0, "")
		doc.CellFormat(95, 5, right, "", 1, "L", false, 0, "")
	}
	doc.Ln(6)

	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(230, 230, 230)
	doc.CellFormat(12, 7, "SN", "1", 0, "C", true, 0, "")
	doc.CellFormat(60, 7, "Item", "1", 0, "L", true, 0, "")
	doc.CellFormat(88, 7, "Description", "1", 0, "L", true, 0, "")
	doc.CellFormat(30, 7, "Amount", "1", 1, "R", true, 0, "")

	doc.SetFont("Helvetica", "", 10)
	for _, item := range p.Items {
		doc.CellFormat(12, 7, strconv.Itoa(item.SN), "1", 0, "C", false, 0, "")
		doc.CellFormat(60, 7, item.Item, "1", 0, "L", false, 0, "")
		doc.CellFormat(88, 7, item.Description, "1", 0, "L", false, 0, "")
		doc.CellFormat(30, 7, item.Amount.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(160, 8, "Total", "1", 0, "R", false, 0, "")
	doc.CellFormat(30, 8, p.Total.StringFixed(2), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), buildFilename(p), nil
}

// buildFilename composes "Invoice_<number>_<client>_<date>.pdf" from
// whichever fragments survive sanitization.
func buildFilename(p Payload) string {
	fragments := make([]string, 0, 3)
	for _, raw := range []string{p.InvoiceNumber, p.ClientName, p.InvoiceDate} {
		if frag := storage.SanitizeFragment(raw); frag != "" {
			fragments = append(fragments, frag)
		}
	}
	if len(fragments) == 0 {
		return "invoice.pdf"
	}
	return "Invoice_" + strings.Join(fragments, "_") + ".pdf"
}
