package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-toy-backend/internal/auth"
	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/repo"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var ctxBG = context.Background()

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// clock is a settable test clock.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)} // a Wednesday
}

type authFixture struct {
	db    *gorm.DB
	clk   *clock
	svc   *AuthService
	guard *IdentityGuard
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := newSvcDB(t)
	clk := newClock()

	issuer := auth.NewIssuer(testSecret, 15*time.Minute)
	issuer.Now = clk.Now
	hasher := auth.NewHasher(testSecret)

	svc := NewAuthService(db, issuer, hasher, 24*time.Hour, bcrypt.MinCost)
	svc.Now = clk.Now
	return &authFixture{
		db:    db,
		clk:   clk,
		svc:   svc,
		guard: &IdentityGuard{DB: db, Issuer: issuer, Hasher: hasher},
	}
}

func (f *authFixture) signup(t *testing.T, email string) *domain.Parent {
	t.Helper()
	p, err := f.svc.Signup(ctxBG, SignupInput{Name: "Pat", Email: email, Password: "long-enough-pw"})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return p
}

func seedParent(t *testing.T, db *gorm.DB, email string) *domain.Parent {
	t.Helper()
	p, err := repo.CreateParent(ctxBG, db, "Pat", email, "x", nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	return p
}

func seedToy(t *testing.T, db *gorm.DB) *domain.Toy {
	t.Helper()
	toy := &domain.Toy{ID: uuid.NewString(), ToyUUID: uuid.NewString(), ModelNo: "T1", RegisteredAt: time.Now().UTC()}
	if err := repo.CreateToy(ctxBG, db, toy); err != nil {
		t.Fatalf("seed toy: %v", err)
	}
	return toy
}
