package receipts

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/go-pdf/fpdf"
)

const dateLayout = "2006-01-02 15:04 MST"

type party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type vehicle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type document struct {
	PaymentID string    `json:"paymentId"`
	RentalID  string    `json:"rentalId"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	Customer  party     `json:"customer"`
	Vehicle   vehicle   `json:"vehicle"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IssuedAt  time.Time `json:"issuedAt"`
}

func newDocument(d *models.PaymentDetails, issuedAt time.Time) document {
	return document{
		PaymentID: d.ID,
		RentalID:  d.RentalRequestID,
		Method:    string(d.Method),
		Status:    string(d.Status),
		Amount:    d.Amount.StringFixed(2),
		Customer:  party{ID: d.CustomerID, Name: d.CustomerName, Email: d.CustomerEmail},
		Vehicle:   vehicle{ID: d.VehicleID, Title: d.VehicleTitle},
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		IssuedAt:  issuedAt,
	}
}

// RenderJSON encodes the receipt as indented JSON.
func RenderJSON(d *models.PaymentDetails, issuedAt time.Time) ([]byte, error) {
	return json.MarshalIndent(newDocument(d, issuedAt), "", "  ")
}

// RenderPDF lays the receipt out on a single A4 page.
func RenderPDF(d *models.PaymentDetails, issuedAt time.Time) ([]byte, error) {
	doc := newDocument(d, issuedAt)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(issuedAt)
	pdf.SetTitle("Receipt "+doc.PaymentID, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Rental payment receipt")
	pdf.Ln(14)

	rows := [][2]string{
		{"Receipt", doc.PaymentID},
		{"Rental", doc.RentalID},
		{"Customer", doc.Customer.Name + " <" + doc.Customer.Email + ">"},
		{"Vehicle", doc.Vehicle.Title},
		{"From", doc.StartDate.Format(dateLayout)},
		{"To", doc.EndDate.Format(dateLayout)},
		{"Method", doc.Method},
		{"Status", doc.Status},
		{"Amount", doc.Amount},
		{"Issued", doc.IssuedAt.Format(dateLayout)},
	}

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range rows {
		pdf.CellFormat(40, 8, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, tr(row[1]), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
