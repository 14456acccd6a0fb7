package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/models"
	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
)

type stubResourceLister struct {
	items  []models.Resource
	filter models.ResourceFilter
}

func (s *stubResourceLister) ListAll(_ context.Context, filter models.ResourceFilter) ([]models.Resource, error) {
	s.filter = filter
	return s.items, nil
}

func TestExportResourcesCSV(t *testing.T) {
	year := 2024
	uploader := "Ayu"
	lister := &stubResourceLister{items: []models.Resource{{
		ID: "res-1", Title: "Thesis, Vol 1", Type: models.ResourceTypeThesis, Status: models.ResourceStatusApproved,
		UploaderName: &uploader, ViewCount: 7, Metadata: &models.ResourceMetadata{Year: &year},
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}}}
	svc := NewExportService(lister, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	doc, err := svc.Resources(context.Background(), models.ResourceFilter{Status: models.ResourceStatusApproved}, models.ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "resources_20240601_120000.csv", doc.FileName)
	assert.Contains(t, doc.ContentType, "text/csv")
	assert.Equal(t, models.ResourceStatusApproved, lister.filter.Status)

	records, err := csv.NewReader(bytes.NewReader(doc.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, resourceReportHeaders, records[0])
	assert.Equal(t, "Thesis, Vol 1", records[1][1])
	assert.Equal(t, "Ayu", records[1][5])
	assert.Equal(t, "2024", records[1][7])
	assert.Equal(t, "7", records[1][9])
}

func TestExportResourcesPDF(t *testing.T) {
	svc := NewExportService(&stubResourceLister{items: []models.Resource{{ID: "res-1", Title: "Exam"}}}, zap.NewNop())
	doc, err := svc.Resources(context.Background(), models.ResourceFilter{}, models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))
}

func TestExportResourcesRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&stubResourceLister{}, zap.NewNop())
	_, err := svc.Resources(context.Background(), models.ResourceFilter{}, "xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
