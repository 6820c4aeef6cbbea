package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"docindex-platform/models"
)

const (
	ExportFormatJSON  = "json"
	ExportFormatExcel = "excel"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RunReport is the exported view of one reindex run.
type RunReport struct {
	RunID          string     `json:"run_id"`
	Phase          string     `json:"phase"`
	LastAction     string     `json:"last_action"`
	Cause          string     `json:"cause,omitempty"`
	TotalDocuments int        `json:"total_documents"`
	ProcessedCount int        `json:"processed_count"`
	ErrorCount     int        `json:"error_count"`
	OldResourceID  string     `json:"old_resource_id,omitempty"`
	NewResourceID  string     `json:"new_resource_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Duration       string     `json:"duration,omitempty"`
	Errors         []string   `json:"errors"`
	ExportedAt     time.Time  `json:"exported_at"`
}

func BuildRunReport(run *models.ReindexRun, now time.Time) *RunReport {
	st := run.State
	report := &RunReport{
		RunID:          run.ID,
		Phase:          string(st.Phase),
		LastAction:     run.LastAction,
		Cause:          run.Cause,
		TotalDocuments: st.TotalDocuments,
		ProcessedCount: st.ProcessedCount,
		ErrorCount:     st.ErrorCount,
		OldResourceID:  st.OldResourceID,
		NewResourceID:  st.NewResourceID,
		CreatedAt:      run.CreatedAt,
		FinishedAt:     run.FinishedAt,
		Errors:         append([]string{}, st.ErrorMessages...),
		ExportedAt:     now,
	}
	if run.FinishedAt != nil && !run.CreatedAt.IsZero() {
		report.Duration = run.FinishedAt.Sub(run.CreatedAt).Round(time.Second).String()
	}
	return report
}

// RenderRunReportExcel writes a Summary sheet and an Errors sheet.
func RenderRunReportExcel(report *RunReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	finished := ""
	if report.FinishedAt != nil {
		finished = report.FinishedAt.UTC().Format("2006-01-02 15:04:05")
	}
	rows := [][]interface{}{
		{"Run ID", report.RunID},
		{"Phase", report.Phase},
		{"Last Action", report.LastAction},
		{"Cause", report.Cause},
		{"Total Documents", report.TotalDocuments},
		{"Processed", report.ProcessedCount},
		{"Errors", report.ErrorCount},
		{"Old Resource", report.OldResourceID},
		{"New Resource", report.NewResourceID},
		{"Started", report.CreatedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Finished", finished},
		{"Duration", report.Duration},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}
	f.SetColWidth(summary, "A", "A", 18)
	f.SetColWidth(summary, "B", "B", 48)

	errorsSheet := "Errors"
	if _, err := f.NewSheet(errorsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetSheetRow(errorsSheet, "A1", &[]interface{}{"#", "Message"})
	for i, msg := range report.Errors {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		f.SetSheetRow(errorsSheet, cell, &[]interface{}{i + 1, msg})
	}
	f.SetColWidth(errorsSheet, "B", "B", 100)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// StreamRunReport writes the report as an attachment in the requested format.
func StreamRunReport(c *gin.Context, report *RunReport, format string) error {
	filename := "reindex_" + report.RunID

	switch format {
	case ExportFormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		c.Header("Content-Disposition", "attachment; filename="+filename+".json")
		c.Header("Content-Length", strconv.Itoa(len(data)))
		c.Data(http.StatusOK, "application/json", data)

	case ExportFormatExcel:
		data, err := RenderRunReportExcel(report)
		if err != nil {
			return err
		}
		c.Header("Content-Disposition", "attachment; filename="+filename+".xlsx")
		c.Header("Content-Length", strconv.Itoa(len(data)))
		c.Data(http.StatusOK, xlsxContentType, data)

	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
	return nil
}
