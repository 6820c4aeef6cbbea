package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docindex-platform/models"
)

func TestRunReportExcel(t *testing.T) {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	finished := created.Add(90 * time.Second)
	run := &models.ReindexRun{
		ID:         "run-7",
		LastAction: "finalize",
		CreatedAt:  created,
		FinishedAt: &finished,
		State: models.SagaState{
			Phase:          models.PhaseCompleted,
			NewResourceID:  "idx-7",
			TotalDocuments: 3,
			ProcessedCount: 3,
			ErrorCount:     1,
			ErrorMessages:  []string{"b.pdf: ingest into idx-7: timeout"},
		},
	}

	report := BuildRunReport(run, finished)
	assert.Equal(t, "1m30s", report.Duration)
	assert.Equal(t, "COMPLETED", report.Phase)

	data, err := RenderRunReportExcel(report)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Errors"}, f.GetSheetList())
	v, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "run-7", v)
	v, err = f.GetCellValue("Errors", "B2")
	require.NoError(t, err)
	assert.Equal(t, "b.pdf: ingest into idx-7: timeout", v)
}

func TestRunReportWithoutFinish(t *testing.T) {
	report := BuildRunReport(&models.ReindexRun{ID: "r", State: models.SagaState{Phase: models.PhaseProcessingBatch}}, time.Now())
	assert.Empty(t, report.Duration)
	assert.NotNil(t, report.Errors)
}
