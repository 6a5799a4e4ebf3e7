package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/tienda-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupOrderCounterRepositoryTest(t *testing.T) *GormOrderCounterRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:counter_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.OrderCounter{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewOrderCounterRepository(db)
}

func TestOrderCounterNextIncrementsPerDay(t *testing.T) {
	repo := setupOrderCounterRepositoryTest(t)

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Next("20260301")
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if got != want {
			t.Fatalf("next want %d got %d", want, got)
		}
	}
}

func TestOrderCounterDaysAreIndependent(t *testing.T) {
	repo := setupOrderCounterRepositoryTest(t)

	if _, err := repo.Next("20260301"); err != nil {
		t.Fatalf("next day1 failed: %v", err)
	}
	if _, err := repo.Next("20260301"); err != nil {
		t.Fatalf("next day1 failed: %v", err)
	}

	got, err := repo.Next("20260302")
	if err != nil {
		t.Fatalf("next day2 failed: %v", err)
	}
	if got != 1 {
		t.Fatalf("new day should restart at 1, got %d", got)
	}
}

func TestOrderCounterCurrent(t *testing.T) {
	repo := setupOrderCounterRepositoryTest(t)

	current, err := repo.Current("20260303")
	if err != nil {
		t.Fatalf("current on missing day failed: %v", err)
	}
	if current != 0 {
		t.Fatalf("current on missing day want 0 got %d", current)
	}

	if _, err := repo.Next("20260303"); err != nil {
		t.Fatalf("next failed: %v", err)
	}
	current, err = repo.Current("20260303")
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if current != 1 {
		t.Fatalf("current want 1 got %d", current)
	}
}

func TestOrderCounterNextRejectsEmptyDay(t *testing.T) {
	repo := setupOrderCounterRepositoryTest(t)
	if _, err := repo.Next(""); err == nil {
		t.Fatalf("next with empty day should fail")
	}
}
