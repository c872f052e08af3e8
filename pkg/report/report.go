// Package report 将校正记录导出为 Excel 工作表，便于人工复核。
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"textcorrector/pkg/correction"
	"textcorrector/pkg/fileprocessor"
)

// SheetName 报告所在的工作表
const SheetName = "校正記錄"

var headers = []interface{}{"部件", "段落", "原文", "校正後", "變更"}

// Write 将 changes 写入 path 指定的 xlsx 文件
func Write(path string, changes []fileprocessor.Change) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("重新命名工作表失敗: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("寫入表頭失敗: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E0E0E0"}},
	})
	if err != nil {
		return fmt.Errorf("建立樣式失敗: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", bold); err != nil {
		return fmt.Errorf("設定表頭樣式失敗: %w", err)
	}

	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("建立樣式失敗: %w", err)
	}

	for i, c := range changes {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{c.Part, c.Paragraph + 1, c.Original, c.Corrected, DescribeRanges(c.Corrected, c.Ranges)}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("寫入第 %d 列失敗: %w", i+2, err)
		}
	}
	if len(changes) > 0 {
		last, _ := excelize.CoordinatesToCellName(5, len(changes)+1)
		if err := f.SetCellStyle(SheetName, "A2", last, wrap); err != nil {
			return fmt.Errorf("設定儲存格樣式失敗: %w", err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "C", "D", 60); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "E", "E", 30); err != nil {
		return err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("凍結表頭失敗: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("儲存報告 '%s' 失敗: %w", path, err)
	}
	return nil
}

// DescribeRanges 以 "起-止:文字" 的形式列出每个变更区间，多个区间以 "; " 分隔
func DescribeRanges(text string, ranges []correction.Range) string {
	runes := []rune(text)
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		if r.Start < 0 || r.End > len(runes) || r.Start >= r.End {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d-%d:%s", r.Start, r.End, string(runes[r.Start:r.End])))
	}
	return strings.Join(parts, "; ")
}
