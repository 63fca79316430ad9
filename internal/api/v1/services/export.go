package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/tealeg/xlsx"

	apperrors "voicepipe/internal/app/errors"
	"voicepipe/internal/app/repository"
)

// ExportServiceImpl renders recordings into xlsx workbooks.
type ExportServiceImpl struct {
	dao repository.RecordingDAO
}

func NewExportService(dao repository.RecordingDAO) *ExportServiceImpl {
	return &ExportServiceImpl{dao: dao}
}

// ExportUserRecordings builds one worksheet with a row per recording,
// including transcription text and the mirrored quality score.
func (s *ExportServiceImpl) ExportUserRecordings(ctx context.Context, userID string) ([]byte, error) {
	recs, err := s.dao.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Recordings")
	if err != nil {
		return nil, apperrors.Wrap(err, "creating worksheet")
	}

	headerRow := sheet.AddRow()
	headerRow.AddCell().Value = "ID"
	headerRow.AddCell().Value = "Filename"
	headerRow.AddCell().Value = "Format"
	headerRow.AddCell().Value = "Status"
	headerRow.AddCell().Value = "Duration (s)"
	headerRow.AddCell().Value = "File Size"
	headerRow.AddCell().Value = "Quality Score"
	headerRow.AddCell().Value = "Transcription"
	headerRow.AddCell().Value = "Created At"

	for _, rec := range recs {
		row := sheet.AddRow()
		row.AddCell().Value = rec.ID
		row.AddCell().Value = rec.Filename
		row.AddCell().Value = rec.Format
		row.AddCell().Value = string(rec.Status)
		row.AddCell().Value = fmt.Sprintf("%.1f", rec.Duration)
		row.AddCell().Value = fmt.Sprint(rec.FileSize)
		if rec.QualityScore != nil {
			row.AddCell().Value = fmt.Sprintf("%.1f", *rec.QualityScore)
		} else {
			row.AddCell().Value = ""
		}
		if rec.Transcription != nil {
			row.AddCell().Value = *rec.Transcription
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().Value = rec.CreatedAt.Format(time.RFC3339)
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, apperrors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}
