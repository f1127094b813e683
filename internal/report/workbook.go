// Package report exports a finished attempt as an Excel workbook.
package report

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/runner"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	AnswersSheet = "Answers"
)

// AttemptWorkbook renders the attempt summary and one row per question.
func AttemptWorkbook(a *models.Assessment, snap runner.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := writeRows(f, SummarySheet, summaryRows(a, snap)); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(AnswersSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := writeRows(f, AnswersSheet, answerRows(a, snap.Answers)); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryRows(a *models.Assessment, snap runner.Snapshot) [][]interface{} {
	rows := [][]interface{}{
		{"Field", "Value"},
		{"Assessment ID", a.ID},
		{"Title", a.Title},
		{"Status", string(snap.Status)},
		{"Time limit (s)", a.TimeLimitSeconds()},
		{"Time spent (s)", snap.TimeSpent},
		{"Answered", fmt.Sprintf("%d/%d", snap.AnsweredCount(), a.QuestionCount())},
		{"Passing score", a.PassingScore},
	}

	if snap.Result != nil {
		summary := snap.Result.Summary
		if summary.Score != nil {
			rows = append(rows, []interface{}{"Score", *summary.Score})
		}
		if summary.Passed != nil {
			rows = append(rows, []interface{}{"Passed", *summary.Passed})
		}
		if summary.CorrectAnswers != nil && summary.TotalQuestions != nil {
			rows = append(rows, []interface{}{"Correct", fmt.Sprintf("%d/%d", *summary.CorrectAnswers, *summary.TotalQuestions)})
		}
	}
	return rows
}

func answerRows(a *models.Assessment, answers models.Answers) [][]interface{} {
	rows := [][]interface{}{{"#", "Question ID", "Type", "Prompt", "Answer"}}
	for i, q := range a.Questions {
		rows = append(rows, []interface{}{i + 1, q.ID, string(q.Type), q.Prompt, FormatAnswer(answers[q.ID])})
	}
	return rows
}

// FormatAnswer renders an answer as a single cell value. A missing answer
// is the empty string.
func FormatAnswer(value models.AnswerValue) string {
	switch v := value.(type) {
	case models.ChoiceAnswer:
		return v.Option
	case models.MultiSelectAnswer:
		return strings.Join(v.Options, ", ")
	case models.TextAnswer:
		return v.Text
	default:
		return ""
	}
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write cell %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
