package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"studentattendance/internal/access"
)

const exportSheet = "Attendance"

var exportHeader = []interface{}{"Student ID", "Status", "Method", "Check-in Time", "Face Verified", "Notes"}

// Export renders a session's records as an XLSX workbook. The first rows
// summarise the session and its statistics.
func (s *Service) Export(ctx context.Context, caller access.Caller, id string) ([]byte, string, error) {
	sess, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}
	st, err := s.stats(ctx, sess)
	if err != nil {
		return nil, "", err
	}
	records, err := s.store.ListRecords(ctx, RecordFilter{SessionID: sess.ID})
	if err != nil {
		return nil, "", err
	}

	data, err := renderWorkbook(sess, st, records)
	if err != nil {
		return nil, "", err
	}
	name := fmt.Sprintf("attendance-%s-%s.xlsx", sess.ScheduledStart.Format("20060102"), sess.ID[:8])
	return data, name, nil
}

func renderWorkbook(sess Session, st Stats, records []Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	summary := [][]interface{}{
		{"Session", sess.Title},
		{"Scheduled Start", sess.ScheduledStart.Format(time.RFC3339)},
		{"Status", string(sess.Status)},
		{"Total Enrolled", st.TotalEnrolled},
		{"Total Present", st.TotalPresent},
		{"Attendance %", st.AttendancePercentage},
	}
	row := 1
	for _, line := range summary {
		if err := setRow(f, row, line); err != nil {
			return nil, err
		}
		row++
	}
	row++

	headerRow := row
	if err := setRow(f, row, exportHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		row++
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		if err := setRow(f, row, []interface{}{
			r.StudentID, string(r.Status), string(r.Method),
			r.CheckInTime.Format(time.RFC3339), r.FaceVerified, notes,
		}); err != nil {
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating style")
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), headerRow)
	if err := f.SetCellStyle(exportSheet, first, last, bold); err != nil {
		return nil, errors.Wrap(err, "styling header")
	}
	if err := f.SetColWidth(exportSheet, "A", "D", 24); err != nil {
		return nil, errors.Wrap(err, "sizing columns")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "addressing row")
	}
	return errors.Wrap(f.SetSheetRow(exportSheet, cell, &values), "writing row")
}
