package spreadsheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// 카탈로그 시트 컬럼 순서
const (
	colName = iota
	colBrand
	colCategory
	colKind
	colPrice
	colQuantity
	colFlowerTypes
	colColors
	colImageURL
	colDescription

	catalogColumns = colDescription + 1
)

// CatalogHeader is the first row of a catalog sheet.
var CatalogHeader = []string{
	"name", "brand", "category", "kind", "price", "quantity",
	"flower_types", "colors", "image_url", "description",
}

// ImportReport counts what happened to the rows of a catalog sheet.
type ImportReport struct {
	Rows    int
	Valid   int
	Skipped int
}

// ReadProducts parses the first sheet of a catalog workbook. Rows missing a
// name or carrying an unparsable price or quantity are skipped.
func ReadProducts(r io.Reader) ([]model.Product, ImportReport, error) {
	var report ImportReport

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, report, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, report, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, report, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, report, fmt.Errorf("no data found in XLSX file")
	}

	var products []model.Product
	// 첫 행은 헤더
	for i, row := range rows[1:] {
		report.Rows++
		product, ok := parseProductRow(row)
		if !ok {
			report.Skipped++
			logger.Debug("Skipping catalog row", map[string]interface{}{
				"sheet": sheetName,
				"row":   i + 2,
			})
			continue
		}
		products = append(products, product)
	}
	report.Valid = len(products)

	logger.Info("Catalog sheet parsed", map[string]interface{}{
		"sheet":   sheetName,
		"rows":    report.Rows,
		"valid":   report.Valid,
		"skipped": report.Skipped,
	})
	return products, report, nil
}

func parseProductRow(row []string) (model.Product, bool) {
	cells := make([]string, catalogColumns)
	for i := 0; i < catalogColumns && i < len(row); i++ {
		cells[i] = strings.TrimSpace(row[i])
	}

	if cells[colName] == "" {
		return model.Product{}, false
	}
	price, err := strconv.ParseFloat(cells[colPrice], 64)
	if err != nil {
		return model.Product{}, false
	}
	quantity, err := strconv.Atoi(cells[colQuantity])
	if err != nil {
		return model.Product{}, false
	}

	kind := model.ProductKind(strings.ToLower(cells[colKind]))
	if kind == "" {
		kind = model.ProductKindBouquet
	}

	return model.Product{
		Name:        cells[colName],
		Brand:       cells[colBrand],
		Category:    cells[colCategory],
		Kind:        kind,
		Price:       price,
		Quantity:    quantity,
		IsActive:    true,
		FlowerTypes: cells[colFlowerTypes],
		Colors:      cells[colColors],
		ImageURL:    cells[colImageURL],
		Description: cells[colDescription],
	}, true
}
