package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"expensight/analytics"
	"expensight/middleware"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler snapshot downloads
type ExportHandler struct {
	analysis Analyzer
}

// NewExportHandler creates the export handler
func NewExportHandler(analysis Analyzer) *ExportHandler {
	return &ExportHandler{analysis: analysis}
}

// exportRow is one category line of an export.
type exportRow struct {
	Category    string
	Spent       float64
	Share       float64
	Budget      float64
	Remaining   float64
	UsedPercent float64
	Previous    float64
	Change      string
}

var exportHeaders = []string{"Category", "Spent", "Share %", "Budget", "Remaining", "Used %", "Previous", "Change"}

// exportRows lists the categories that were spent in or budgeted, in snapshot order.
func exportRows(snap *analytics.Snapshot) []exportRow {
	rows := make([]exportRow, 0, len(snap.Budget.Lines))
	for _, line := range snap.Budget.Lines {
		row := exportRow{
			Category:    line.Category,
			Spent:       line.Spent,
			Budget:      line.Budget,
			Remaining:   line.Remaining,
			UsedPercent: line.UsedPercent,
			Change:      analytics.FormatPercent(nil),
		}
		if ca, ok := snap.Category(line.Category); ok {
			row.Share = ca.Share
		}
		if snap.Comparison.Available {
			if d, ok := snap.Comparison.Category(line.Category); ok {
				row.Previous = d.Previous
				row.Change = analytics.FormatPercent(d.Percent)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func exportFilename(snap *analytics.Snapshot, ext string) string {
	name := "all-time"
	if !snap.Range.IsAllTime() {
		name = strings.Trim(snap.Range.Start+"_"+snap.Range.End, "_")
	}
	return fmt.Sprintf("spending_%s.%s", name, ext)
}

func (h *ExportHandler) snapshot(c *gin.Context) (*analytics.Snapshot, bool) {
	req, ok := bindSelection(c)
	if !ok {
		return nil, false
	}
	snap, err := h.analysis.Snapshot(c.Request.Context(), middleware.GetCurrentUserID(c), req)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "analysis failed"))
		return nil, false
	}
	return snap, true
}

// ExportCSV exports the category breakdown as CSV
// @Summary Export snapshot as CSV
// @Description Per-category spend, budget and previous-period change for the range, followed by a total line.
// @Tags Export
// @Produce text/csv
// @Security BearerAuth
// @Param start query string false "Range start (YYYY-MM-DD)"
// @Param end query string false "Range end (YYYY-MM-DD)"
// @Success 200 {file} file "CSV file"
// @Failure 400 {object} Response "Invalid range"
// @Failure 401 {object} Response "Unauthorized"
// @Router /api/v1/export/snapshot.csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}

	buf := new(bytes.Buffer)
	// BOM so Excel detects UTF-8
	buf.WriteString("\xEF\xBB\xBF")

	writer := csv.NewWriter(buf)
	if err := writer.Write(exportHeaders); err != nil {
		InternalError(c, "failed to build CSV")
		return
	}

	money := func(v float64) string { return fmt.Sprintf("%.2f", v) }
	for _, r := range exportRows(snap) {
		row := []string{
			r.Category,
			money(r.Spent),
			fmt.Sprintf("%.1f", r.Share),
			money(r.Budget),
			money(r.Remaining),
			fmt.Sprintf("%.1f", r.UsedPercent),
			money(r.Previous),
			r.Change,
		}
		if err := writer.Write(row); err != nil {
			InternalError(c, "failed to build CSV")
			return
		}
	}
	total := []string{
		"Total",
		money(snap.Total),
		"100.0",
		money(snap.Budget.TotalBudget),
		money(snap.Budget.TotalRemaining),
		fmt.Sprintf("%.1f", analytics.UsedPercent(snap.Budget.TotalSpent, snap.Budget.TotalBudget)),
		money(snap.Comparison.Overall.Previous),
		analytics.FormatPercent(snap.Comparison.Overall.Percent),
	}
	if err := writer.Write(total); err != nil {
		InternalError(c, "failed to build CSV")
		return
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "failed to build CSV")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(snap, "csv")))
	c.Header("Content-Length", fmt.Sprintf("%d", buf.Len()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportXLSX exports the snapshot as a workbook
// @Summary Export snapshot as Excel
// @Description Sheets: category breakdown with budgets, top merchants, daily totals.
// @Tags Export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param start query string false "Range start (YYYY-MM-DD)"
// @Param end query string false "Range end (YYYY-MM-DD)"
// @Success 200 {file} file "Excel file"
// @Failure 400 {object} Response "Invalid range"
// @Router /api/v1/export/snapshot.xlsx [get]
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}

	f, err := buildWorkbook(snap)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to build Excel file"))
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(snap, "xlsx")))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "failed to build Excel file")
		return
	}
}

const (
	sheetCategories = "Categories"
	sheetMerchants  = "Top merchants"
	sheetDaily      = "Daily"
)

func buildWorkbook(snap *analytics.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	overStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "C00000", Bold: true},
		Border: border,
	})
	dataStyle, _ := f.NewStyle(&excelize.Style{Border: border})
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border: border,
	})

	writeHeader := func(sheet string, headers []string) {
		for i, header := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, header)
			f.SetCellStyle(sheet, cell, cell, headerStyle)
		}
	}
	writeRow := func(sheet string, row int, style int, values ...interface{}) {
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheet, cell, v)
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(values), row)
		f.SetCellStyle(sheet, first, last, style)
	}

	f.SetSheetName("Sheet1", sheetCategories)
	f.SetColWidth(sheetCategories, "A", "A", 20)
	f.SetColWidth(sheetCategories, "B", "H", 12)
	writeHeader(sheetCategories, exportHeaders)
	rows := exportRows(snap)
	for i, r := range rows {
		style := dataStyle
		if r.Spent > r.Budget {
			style = overStyle
		}
		writeRow(sheetCategories, i+2, style,
			r.Category, r.Spent, r.Share, r.Budget, r.Remaining, r.UsedPercent, r.Previous, r.Change)
	}
	writeRow(sheetCategories, len(rows)+2, summaryStyle,
		"Total", snap.Total, 100.0, snap.Budget.TotalBudget, snap.Budget.TotalRemaining,
		analytics.UsedPercent(snap.Budget.TotalSpent, snap.Budget.TotalBudget),
		snap.Comparison.Overall.Previous, analytics.FormatPercent(snap.Comparison.Overall.Percent))

	if _, err := f.NewSheet(sheetMerchants); err != nil {
		f.Close()
		return nil, err
	}
	f.SetColWidth(sheetMerchants, "A", "A", 30)
	writeHeader(sheetMerchants, []string{"Merchant", "Total", "Items"})
	for i, m := range snap.Leaderboard.Merchants {
		writeRow(sheetMerchants, i+2, dataStyle, m.Name, m.Total, m.Count)
	}

	if _, err := f.NewSheet(sheetDaily); err != nil {
		f.Close()
		return nil, err
	}
	f.SetColWidth(sheetDaily, "A", "A", 14)
	writeHeader(sheetDaily, []string{"Date", "Total"})
	for i, p := range snap.Trend.Points {
		writeRow(sheetDaily, i+2, dataStyle, p.Date, p.Total)
	}

	return f, nil
}
