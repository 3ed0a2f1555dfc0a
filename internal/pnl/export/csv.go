// Package export flattens P&L reports into file-friendly rows.
package export

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fleetcore/fleetcore/internal/pnl"
)

var printer = message.NewPrinter(language.English)

func formatMoney(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// WriteReportCSV serialises a P&L report to CSV: a summary block, the revenue
// series, the COGS category breakdown and the maintenance-by-type breakdown.
func WriteReportCSV(w io.Writer, report *pnl.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	summary := [][]string{
		{"Window From", report.Window.From.Format("2006-01-02")},
		{"Window To", report.Window.To.Format("2006-01-02")},
		{"Revenue", formatMoney(report.Revenue.Total)},
		{"COGS", formatMoney(report.COGS.Total)},
		{"Maintenance", formatMoney(report.Maintenance.Total)},
		{"OPEX", formatMoney(report.OPEX.Total)},
		{"Salaries", formatMoney(report.OPEX.FixedCosts.Salaries)},
		{"Rent", formatMoney(report.OPEX.FixedCosts.Rent)},
		{"Utilities", formatMoney(report.OPEX.FixedCosts.Utilities)},
		{"Other OPEX", formatMoney(report.OPEX.FixedCosts.Other)},
		{"Gross Profit", formatMoney(report.GrossProfit)},
		{"Net Profit", formatMoney(report.NetProfit)},
	}
	for _, record := range summary {
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	if err := writer.Write([]string{}); err != nil {
		return err
	}
	if err := writer.Write([]string{"Period", "Revenue"}); err != nil {
		return err
	}
	for _, point := range report.Revenue.Series {
		if err := writer.Write([]string{point.Period, formatMoney(point.Revenue)}); err != nil {
			return err
		}
	}

	if len(report.COGS.Categories) > 0 {
		if err := writer.Write([]string{}); err != nil {
			return err
		}
		if err := writer.Write([]string{"COGS Category", "Amount"}); err != nil {
			return err
		}
		for _, row := range report.COGS.Categories {
			if err := writer.Write([]string{row.Category, formatMoney(row.Amount)}); err != nil {
				return err
			}
		}
	}

	if len(report.Maintenance.ByType) > 0 {
		if err := writer.Write([]string{}); err != nil {
			return err
		}
		if err := writer.Write([]string{"Maintenance Type", "Amount"}); err != nil {
			return err
		}
		for _, row := range report.Maintenance.ByType {
			if err := writer.Write([]string{row.Type, formatMoney(row.Amount)}); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
