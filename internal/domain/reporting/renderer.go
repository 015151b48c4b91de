package reporting

import (
	"context"
	"fmt"
	"strings"

	"comanda/internal/core/apperror"
)

// TextRenderer renders a report document as plain text, suitable for
// printing on a kitchen/back-office thermal printer or emailing.
type TextRenderer struct{}

// NewTextRenderer creates a plain-text renderer.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

// Render implements Renderer. Only the "text" format is supported.
func (r *TextRenderer) Render(_ context.Context, doc *ReportDocument, format string) ([]byte, error) {
	if format != "text" {
		return nil, apperror.NewValidation("unsupported report format").
			WithDetail("format", format)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "CMV REPORT %s (%s)\n", doc.PeriodID, doc.PeriodType)
	fmt.Fprintf(&b, "Window: %s .. %s\n", doc.StartDate.Format("2006-01-02"), doc.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Generated: %s\n\n", doc.GeneratedAt.Format("2006-01-02 15:04:05"))

	if s := doc.Summary; s != nil {
		b.WriteString("SUMMARY\n")
		fmt.Fprintf(&b, "  Opening stock:  %s\n", s.OpeningStock.StringFixed(2))
		fmt.Fprintf(&b, "  Purchases:      %s\n", s.Purchases.StringFixed(2))
		fmt.Fprintf(&b, "  Closing stock:  %s\n", s.ClosingStock.StringFixed(2))
		fmt.Fprintf(&b, "  Revenue:        %s\n", s.Revenue.StringFixed(2))
		fmt.Fprintf(&b, "  CMV:            %s (%s%%)\n", s.CMV.StringFixed(2), s.CMVPercentage.StringFixed(2))
		fmt.Fprintf(&b, "  Gross margin:   %s (%s%%)\n\n", s.GrossMargin.StringFixed(2), s.GrossMarginPercentage.StringFixed(2))
	}

	if len(doc.Categories) > 0 {
		b.WriteString("BY CATEGORY\n")
		for _, cat := range doc.Categories {
			fmt.Fprintf(&b, "  %-24s %12s  %6s%%\n",
				cat.CategoryName, cat.CMV.StringFixed(2), cat.CMVPercentage.StringFixed(2))
		}
		b.WriteByte('\n')
	}

	if len(doc.TopProducts) > 0 {
		b.WriteString("TOP PRODUCTS\n")
		for _, p := range doc.TopProducts {
			fmt.Fprintf(&b, "  %2d. %-24s %12s  %6s%%\n",
				p.Rank, p.ProductName, p.CMV.StringFixed(2), p.CMVPercentage.StringFixed(2))
		}
	}

	return []byte(b.String()), nil
}
