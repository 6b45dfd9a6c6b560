package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/yoockh/xiaomian/internal/models"
)

const (
	SummarySheet = "面试记录"
	DetailSheet  = "问答明细"

	// ContentType is the MIME type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	summaryHeaders = []string{"ID", "类型", "状态", "总分", "题目数", "弱点", "创建时间", "完成时间"}
	detailHeaders  = []string{"面试ID", "序号", "问题", "回答"}
)

// InterviewsXLSX renders a workbook with one summary row per interview and
// one detail row per question.
func InterviewsXLSX(interviews []models.Interview) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		return nil, fmt.Errorf("create detail sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := writeSummary(f, headerStyle, interviews); err != nil {
		return nil, err
	}
	if err := writeDetail(f, headerStyle, interviews); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.DateTime)
}

func writeSummary(f *excelize.File, style int, interviews []models.Interview) error {
	if err := writeHeader(f, SummarySheet, style, summaryHeaders); err != nil {
		return fmt.Errorf("summary header: %w", err)
	}
	f.SetColWidth(SummarySheet, "A", "E", 12)
	f.SetColWidth(SummarySheet, "F", "F", 40)
	f.SetColWidth(SummarySheet, "G", "H", 20)

	for i, iv := range interviews {
		var score any
		if iv.TotalScore != nil {
			score = *iv.TotalScore
		}
		created := iv.CreatedAt
		row := []any{
			iv.ID,
			string(iv.InterviewType),
			string(iv.Status),
			score,
			len(iv.Questions),
			strings.Join(iv.Weaknesses, "；"),
			formatTime(&created),
			formatTime(iv.CompletedAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("summary row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeDetail(f *excelize.File, style int, interviews []models.Interview) error {
	if err := writeHeader(f, DetailSheet, style, detailHeaders); err != nil {
		return fmt.Errorf("detail header: %w", err)
	}
	f.SetColWidth(DetailSheet, "A", "B", 10)
	f.SetColWidth(DetailSheet, "C", "D", 60)

	r := 2
	for _, iv := range interviews {
		for qi, q := range iv.Questions {
			answer := ""
			if qi < len(iv.Answers) {
				answer = iv.Answers[qi]
			}
			row := []any{iv.ID, qi + 1, q, answer}
			cell, _ := excelize.CoordinatesToCellName(1, r)
			if err := f.SetSheetRow(DetailSheet, cell, &row); err != nil {
				return fmt.Errorf("detail row %d: %w", r, err)
			}
			r++
		}
	}
	return nil
}
