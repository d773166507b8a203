package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/service"
	apperrors "github.com/petalhouse/petalhouse-backend/internal/errors"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
	"github.com/petalhouse/petalhouse-backend/internal/spreadsheet"
)

const maxCatalogUploadSize = 10 << 20

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// ListProducts returns the purchasable catalog
// GET /api/v1/products?category=&kind=
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	category := c.Query("category")
	kind := model.ProductKind(c.Query("kind"))

	products, err := ctrl.productService.ListProducts(c.Request.Context(), category, kind)
	if err != nil {
		respondServiceError(c, err, "list products")
		return
	}

	log.Info("Products fetched successfully", map[string]interface{}{
		"count":    len(products),
		"category": category,
		"kind":     kind,
	})

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns a product by ID
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := ctrl.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "fetch product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

// Restock adds quantity to a product
// POST /api/v1/admin/products/:id/restock
func (ctrl *ProductController) Restock(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid restock request", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력 정보가 올바르지 않습니다")
		return
	}

	product, err := ctrl.productService.Restock(c.Request.Context(), id, req.Quantity)
	if err != nil {
		respondServiceError(c, err, "restock product")
		return
	}

	log.Info("Product restocked", map[string]interface{}{
		"product_id": id,
		"added":      req.Quantity,
		"quantity":   product.Quantity,
	})
	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

// ImportCatalog loads products from an uploaded .xlsx sheet
// POST /api/v1/admin/products/import
func (ctrl *ProductController) ImportCatalog(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "업로드할 파일이 필요합니다")
		return
	}
	if fileHeader.Size > maxCatalogUploadSize {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "파일 크기가 너무 큽니다")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded catalog", err, nil)
		apperrors.InternalError(c, "")
		return
	}
	defer file.Close()

	products, report, err := spreadsheet.ReadProducts(file)
	if err != nil {
		log.Warn("Invalid catalog workbook", map[string]interface{}{
			"filename": fileHeader.Filename,
			"error":    err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "엑셀 파일을 읽을 수 없습니다")
		return
	}

	imported, err := ctrl.productService.ImportProducts(c.Request.Context(), products)
	if err != nil {
		respondServiceError(c, err, "import products")
		return
	}

	log.Info("Catalog imported", map[string]interface{}{
		"filename": fileHeader.Filename,
		"imported": imported,
		"skipped":  report.Skipped,
	})
	c.JSON(http.StatusCreated, gin.H{
		"imported": imported,
		"skipped":  report.Skipped,
	})
}
