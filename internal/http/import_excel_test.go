package httpapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"gridbase-engine/internal/domain"
	"gridbase-engine/internal/service"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildSheet 在测试里生成一个最小的xlsx（默认Sheet1，一行一条）
func buildSheet(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func gridColumns() []*domain.Column {
	return []*domain.Column{
		{ColumnID: "col-name", ColumnName: "Name", ColumnType: "string", Position: 1},
		{ColumnID: "col-amount", ColumnName: "Amount", ColumnType: "number", Position: 2},
	}
}

// TestParseImportSheet_RoundTrip 表头大小写不敏感匹配列名，空格子不产生cell
func TestParseImportSheet_RoundTrip(t *testing.T) {
	data := buildSheet(t, [][]string{
		{"name", "AMOUNT"},
		{"Desk", "10"},
		{"Chair", ""},
	})

	rows, err := parseImportSheet(data, gridColumns())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, []service.CellInput{
		{ColumnID: "col-name", Value: "Desk"},
		{ColumnID: "col-amount", Value: "10"},
	}, rows[0].Cells)

	// 稀疏行：空白格被跳过
	require.Equal(t, []service.CellInput{
		{ColumnID: "col-name", Value: "Chair"},
	}, rows[1].Cells)
}

// TestParseImportSheet_UnknownHeader 对不上列名的表头整个文件拒绝
func TestParseImportSheet_UnknownHeader(t *testing.T) {
	data := buildSheet(t, [][]string{
		{"Name", "Ghost"},
		{"Desk", "x"},
	})
	_, err := parseImportSheet(data, gridColumns())
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown column header "Ghost"`)
}

// TestParseImportSheet_NoDataRows 只有表头不算有效导入
func TestParseImportSheet_NoDataRows(t *testing.T) {
	data := buildSheet(t, [][]string{{"Name", "Amount"}})
	_, err := parseImportSheet(data, gridColumns())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no data rows")
}

// TestParseImportSheet_NotExcel 非xlsx字节流报解析错误
func TestParseImportSheet_NotExcel(t *testing.T) {
	_, err := parseImportSheet([]byte("this is not a spreadsheet"), gridColumns())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse Excel file")
}

// TestBuildImportTemplate 模板表头按position顺序等于列名
func TestBuildImportTemplate(t *testing.T) {
	data, err := buildImportTemplate(gridColumns())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Import")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, []string{"Name", "Amount"}, rows[0])
}

// TestBuildRowsExport 导出按columnId回填表头列，数组值渲染成逗号分隔
func TestBuildRowsExport(t *testing.T) {
	items := []service.RowItem{
		{
			ID: "r1",
			Cells: []map[string]any{
				{"columnId": "col-name", "value": "Desk"},
				{"columnId": "col-amount", "value": 10.0},
			},
		},
		{
			ID: "r2",
			Cells: []map[string]any{
				{"columnId": "col-name", "value": []any{"a", "b"}},
			},
		},
	}

	data, err := buildRowsExport(gridColumns(), items)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Name", "Amount"}, rows[0])
	require.Equal(t, "Desk", rows[1][0])
	require.Equal(t, "10", rows[1][1])
	require.Equal(t, "a, b", rows[2][0])
}

// TestImportFileEndpoint multipart上传Excel走完整导入管线
func TestImportFileEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	tableID := f.createTable(t, "Inventory")
	f.createColumn(t, tableID, map[string]any{"columnName": "Name", "columnType": "string"})
	f.createColumn(t, tableID, map[string]any{"columnName": "Amount", "columnType": "number"})

	sheet := buildSheet(t, [][]string{
		{"Name", "Amount"},
		{"Desk", "10"},
		{"Chair", "20"},
	})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "upload.xlsx")
	require.NoError(t, err)
	_, err = part.Write(sheet)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/grid/api/v1/tables/"+tableID+"/import/file", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-Id", "user-admin")
	req.Header.Set("X-Tenant-Id", f.tenantID)
	req.Header.Set("X-Tenant-Role", "ADMIN")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2.0, asMap(t, decodeEnvelope(t, rec).Result)["importedRows"])

	rec = f.do(t, http.MethodGet, "/grid/api/v1/tables/"+tableID+"/rows", asAdmin, nil)
	require.Equal(t, 2.0, asMap(t, decodeEnvelope(t, rec).Result)["total"])
}

// TestTemplateAndExportEndpoints 模板下载和数据导出返回可解析的xlsx
func TestTemplateAndExportEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	tableID := f.createTable(t, "Products")
	nameID := f.createColumn(t, tableID, map[string]any{"columnName": "Name", "columnType": "string"})
	f.createRow(t, tableID, []map[string]any{{"columnId": nameID, "value": "Desk"}})

	rec := f.do(t, http.MethodGet, "/grid/api/v1/tables/"+tableID+"/import-template", asAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	rows, err := book.GetRows("Import")
	require.NoError(t, err)
	require.NoError(t, book.Close())
	require.Equal(t, [][]string{{"Name"}}, rows)

	rec = f.do(t, http.MethodGet, "/grid/api/v1/tables/"+tableID+"/export", asAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	book, err = excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	rows, err = book.GetRows("Data")
	require.NoError(t, err)
	require.NoError(t, book.Close())
	require.Equal(t, [][]string{{"Name"}, {"Desk"}}, rows)
}
