package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/petalhouse/petalhouse-backend/config"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/internal/app/service"
	"github.com/petalhouse/petalhouse-backend/internal/db"
	"github.com/petalhouse/petalhouse-backend/internal/spreadsheet"
	"github.com/petalhouse/petalhouse-backend/pkg/util"
	"gorm.io/gorm"
)

func main() {
	// 명령줄 인자 확인
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <catalog.xlsx>")
	}

	filePath := os.Args[1]

	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// DB 연결
	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	ctx := context.Background()
	productRepo := repository.NewProductRepository(db.GetDB())
	productService := service.NewProductService(productRepo, service.NewStockLedger(productRepo))

	// XLSX 파일 읽기
	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, report, err := readCatalog(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Rows: %d, valid: %d, skipped: %d\n", report.Rows, report.Valid, report.Skipped)

	// 사용자 확인
	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	imported, err := productService.ImportProducts(ctx, products)
	if err != nil {
		log.Fatal("Failed to import products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", imported)

	// 개발 환경에서는 관리자 계정과 토큰을 함께 발급
	if cfg.Server.Environment == "development" {
		if err := seedAdmin(ctx, cfg, repository.NewUserRepository(db.GetDB())); err != nil {
			log.Fatal("Failed to seed admin:", err)
		}
	}
}

func readCatalog(filePath string) ([]model.Product, spreadsheet.ImportReport, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, spreadsheet.ImportReport{}, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	return spreadsheet.ReadProducts(f)
}

func seedAdmin(ctx context.Context, cfg *config.Config, userRepo repository.UserRepository) error {
	email := strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Println("SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD not set, skipping admin account.")
		return nil
	}

	admin, err := userRepo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := util.HashPassword(password)
		if err != nil {
			return err
		}
		admin = &model.User{Email: email, PasswordHash: hash, Name: "Admin", Role: model.RoleAdmin}
		if err := userRepo.Create(ctx, admin); err != nil {
			return err
		}
		fmt.Printf("Admin account created: %s\n", email)
	case err != nil:
		return err
	case admin.Role != model.RoleAdmin:
		return fmt.Errorf("%s exists and is not an admin", email)
	}

	tokens, err := util.GenerateTokenPair(admin.ID, admin.Email, string(admin.Role),
		cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)
	if err != nil {
		return err
	}
	fmt.Printf("Admin access token: %s\n", tokens.AccessToken)
	return nil
}
