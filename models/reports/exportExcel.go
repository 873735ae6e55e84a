package reports

import (
	"fmt"
	"io"

	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/xuri/excelize/v2"
)

const ReturnsSheet = "Returns"

var returnsHeadings = []string{"Order ID", "Product", "Amount", "Status", "Date", "Return Reason"}

func returnRowCells(r ReturnRow) []interface{} {
	date := ""
	if r.OrderDate != nil {
		date = r.OrderDate.Format("2006-01-02")
	}
	amount, _ := r.Amount.Float64()
	return []interface{}{
		r.Key(),
		r.Description,
		amount,
		string(r.Status),
		date,
		models.ReasonOr(r.OrderRecord, models.ReasonNotAvailable),
	}
}

// NewReturnsWorkbook lays the returns table out on a single sheet.
func NewReturnsWorkbook(rows []ReturnRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ReturnsSheet); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetRow(ReturnsSheet, "A1", &returnsHeadings); err != nil {
		f.Close()
		return nil, err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := returnRowCells(r)
		if err := f.SetSheetRow(ReturnsSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

// WriteReturnsWorkbook streams the returns table as .xlsx to w.
func WriteReturnsWorkbook(w io.Writer, rows []ReturnRow) error {
	f, err := NewReturnsWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveReturnsWorkbook writes the returns table to filename.
func SaveReturnsWorkbook(filename string, rows []ReturnRow) error {
	f, err := NewReturnsWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}
