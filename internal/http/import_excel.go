package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/service"

	"github.com/xuri/excelize/v2"
)

const (
	templateSheetName = "Import"
	exportSheetName   = "Data"
)

// buildImportTemplate 生成导入模板 Excel 文件（表头=列名，一列一格）
func buildImportTemplate(columns []*domain.Column) ([]byte, error) {
	return buildGridExcel(templateSheetName, columns, nil)
}

// buildRowsExport 生成行数据导出 Excel 文件
// items 为 ListRows 的行载荷，cells 是稀疏的（缺格即空白格）
func buildRowsExport(columns []*domain.Column, items []service.RowItem) ([]byte, error) {
	return buildGridExcel(exportSheetName, columns, items)
}

// buildGridExcel 按列定义生成 Excel 文件的通用函数
func buildGridExcel(sheetName string, columns []*domain.Column, items []service.RowItem) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close() // Close on error
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头（列名按position顺序）
	for col, column := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, column.ColumnName); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, 20); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 写入数据（按columnId回填到对应表头列）
	for rowIdx, item := range items {
		row := rowIdx + 2 // 从第2行开始（第1行是表头）
		byColumn := make(map[string]any, len(item.Cells))
		for _, cell := range item.Cells {
			columnID, _ := cell["columnId"].(string)
			byColumn[columnID] = cell["value"]
		}

		for col, column := range columns {
			value := formatExportValue(byColumn[column.ColumnID])
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	// Write to bytes buffer
	// Note: File must remain open during Write operation
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

// formatExportValue 把cell值渲染成适合Excel格子的形式
func formatExportValue(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return v
	}
}

// parseImportSheet 解析上传的 Excel 文件为导入行
// 第一行是表头（列名，大小写不敏感匹配），其后每行一条数据；
// 表头对不上任何列时整个文件拒绝。
func parseImportSheet(data []byte, columns []*domain.Column) ([]service.ImportRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("Excel file has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file has no data rows")
	}

	byName := make(map[string]*domain.Column, len(columns))
	for _, column := range columns {
		byName[strings.ToLower(column.ColumnName)] = column
	}

	header := make([]*domain.Column, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		column, ok := byName[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown column header %q", name)
		}
		header[i] = column
	}

	imported := make([]service.ImportRow, 0, len(rows)-1)
	for _, sheetRow := range rows[1:] {
		var cells []service.CellInput
		for i, text := range sheetRow {
			if i >= len(header) || header[i] == nil {
				continue
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			cells = append(cells, service.CellInput{
				ColumnID: header[i].ColumnID,
				Value:    text,
			})
		}
		imported = append(imported, service.ImportRow{Cells: cells})
	}
	return imported, nil
}
