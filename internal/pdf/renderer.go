package pdf

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"sales-service/internal/models"
	"sales-service/internal/util"
)

// Render produces the proposal PDF for an order: client header,
// itemized product table with per-line totals, and the aggregate total.
func Render(order *models.Order, client *models.Client) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(15, 15, 15)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, fmt.Sprintf("Proposta de Venda #%d", order.ID), "", 1, "L", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, fmt.Sprintf("Cliente: %s", client.Name), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, fmt.Sprintf("Documento: %s", client.Document), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, fmt.Sprintf("E-mail: %s  Telefone: %s", client.Email, client.Phone), "", 1, "L", false, 0, "")

	d := order.DeliveryAddress
	doc.CellFormat(0, 6,
		fmt.Sprintf("Entrega: %s, %s %s - %s, %s/%s - CEP %s",
			d.Street, d.Number, d.Complement, d.Neighborhood, d.City, d.State, d.CEP),
		"", 1, "L", false, 0, "")
	doc.Ln(4)

	// Table header
	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(230, 230, 230)
	doc.CellFormat(70, 7, "Produto", "1", 0, "L", true, 0, "")
	doc.CellFormat(35, 7, "Variação", "1", 0, "L", true, 0, "")
	doc.CellFormat(15, 7, "Qtd", "1", 0, "C", true, 0, "")
	doc.CellFormat(30, 7, "Preço Unit.", "1", 0, "R", true, 0, "")
	doc.CellFormat(30, 7, "Total", "1", 1, "R", true, 0, "")

	doc.SetFont("Helvetica", "", 9)
	total := decimal.Zero
	for _, item := range order.Items {
		lineTotal := item.LineTotal()
		total = total.Add(lineTotal)

		doc.CellFormat(70, 7, item.Name, "1", 0, "L", false, 0, "")
		doc.CellFormat(35, 7, item.SelectedVariation, "1", 0, "L", false, 0, "")
		doc.CellFormat(15, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		doc.CellFormat(30, 7, formatBRL(item.NetUnitPrice), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 7, formatBRL(lineTotal), "1", 1, "R", false, 0, "")
	}

	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(150, 8, "Valor Total", "1", 0, "R", false, 0, "")
	doc.CellFormat(30, 8, formatBRL(total), "1", 1, "R", false, 0, "")

	if order.ProposalDetails != "" {
		doc.Ln(4)
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(0, 6, "Observações", "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 9)
		doc.MultiCell(0, 5, order.ProposalDetails, "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}

	util.PDFRenderedTotal.Inc()
	return buf.Bytes(), nil
}

func formatBRL(v decimal.Decimal) string {
	return "R$ " + v.StringFixed(2)
}
