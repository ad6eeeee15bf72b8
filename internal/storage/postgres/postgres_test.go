package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"

	"fintrack/internal/storage/storagetest"
)

func TestPostgresStoreContract(t *testing.T) {
	_ = godotenv.Load("../../../.env")
	url := os.Getenv("FINTRACK_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("FINTRACK_TEST_POSTGRES_URL not set")
	}

	s, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for _, k := range []string{"k1", "k2", "k3", "k4", "transactions_a@example.com", "transactions_b@example.com"} {
		if err := s.Delete(ctx, k); err != nil {
			t.Fatalf("cleanup %s: %v", k, err)
		}
	}
	storagetest.Run(t, s)
}
