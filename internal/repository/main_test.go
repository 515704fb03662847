package repository

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"kiosk-pos/internal/database"
	"kiosk-pos/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context) error, error) {
	var (
		dbName = "kiosk"
		dbPwd  = "password"
		dbUser = "user"
	)

	ctx := context.Background()
	dbContainer, err := postgres.Run(
		ctx,
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(ctx, testDB, "../../migrations", zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}

	if code != 0 {
		log.Fatalf("tests failed with code %d", code)
	}
}

func newTestOperator(t *testing.T) *domain.Operator {
	t.Helper()
	now := time.Now().UTC()
	operator := &domain.Operator{
		ID:           uuid.New(),
		Username:     "op-" + uuid.NewString()[:8],
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceholderpla",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := NewOperatorRepository(testDB).Create(context.Background(), operator); err != nil {
		t.Fatalf("failed to create operator: %v", err)
	}
	return operator
}

func newTestProduct(t *testing.T, name string, price string, stock int) *domain.Product {
	t.Helper()
	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Barcode:   domain.OptionalString("BC-" + uuid.NewString()[:12]),
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := NewProductRepository(testDB).Create(context.Background(), product); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return product
}
