package shopping

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var categoryLabels = map[Category]string{
	Produce:   "채소·과일",
	Meat:      "육류",
	Dairy:     "유제품",
	Bakery:    "베이커리",
	Frozen:    "냉동",
	Pantry:    "식료품",
	Beverages: "음료",
	Other:     "기타",
}

// PDFExporter renders shopping lists as printable A4 pages.
type PDFExporter struct {
	baseURL  string
	fontPath string
}

// NewPDFExporter creates an exporter. baseURL is the web app origin the QR
// code links to; fontPath is an optional UTF-8 TTF used for Korean text.
func NewPDFExporter(baseURL, fontPath string) *PDFExporter {
	return &PDFExporter{baseURL: baseURL, fontPath: fontPath}
}

// ListURL is the web view of a list.
func (e *PDFExporter) ListURL(listID string) string {
	return fmt.Sprintf("%s/shopping-lists/%s", e.baseURL, listID)
}

// Export renders the list grouped by category with a checkbox per item and a
// QR code pointing at the list's web view.
func (e *PDFExporter) Export(list *ShoppingList) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	family := "Arial"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	label := func(c Category) string { return string(c) }
	if e.fontPath != "" {
		pdf.AddUTF8Font("kr", "", e.fontPath)
		family = "kr"
		tr = func(s string) string { return s }
		label = func(c Category) string { return categoryLabels[c] }
	}
	pdf.AddPage()

	pdf.SetFont(family, "", 16)
	pdf.Cell(0, 10, tr(list.Name))
	pdf.Ln(12)

	qrPNG, err := qrcode.Encode(e.ListURL(list.ID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 165, 10, 30, 30, false, imageOpts, 0, "")

	for _, cat := range Categories {
		var group []Item
		for _, it := range list.Items {
			if it.Category == cat {
				group = append(group, it)
			}
		}
		if len(group) == 0 {
			continue
		}

		pdf.SetFont(family, "", 13)
		pdf.Cell(0, 8, tr(label(cat)))
		pdf.Ln(9)

		pdf.SetFont(family, "", 11)
		for _, it := range group {
			x, y := pdf.GetX(), pdf.GetY()
			pdf.Rect(x, y+1.5, 4, 4, "D")
			if it.IsChecked {
				pdf.Line(x+0.8, y+3.5, x+1.8, y+4.8)
				pdf.Line(x+1.8, y+4.8, x+3.4, y+2)
			}
			pdf.SetX(x + 7)
			pdf.Cell(110, 7, tr(it.IngredientName))
			pdf.Cell(0, 7, tr(formatAmount(it.Amount)+" "+it.Unit))
			pdf.Ln(7)
		}
		pdf.Ln(3)
	}

	if len(list.Items) == 0 {
		pdf.SetFont(family, "", 11)
		pdf.Cell(0, 8, "(empty)")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
