package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func authFixture() (*AuthService, *fakeUserStore) {
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	users := &fakeUserStore{
		users: map[int]*model.User{1: {ID: 1, Email: "c@example.com", PasswordHash: string(hash)}},
		admins: map[string]*model.Admin{
			"admin@example.com": {ID: 1, Email: "admin@example.com", PasswordHash: string(hash)},
		},
	}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	return NewAuthService(cfg, users, rdb), users
}

func TestPasswordHashRoundTrip(t *testing.T) {
	svc, _ := authFixture()

	hash, err := svc.HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.CheckPassword(hash, "hunter22"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := svc.CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAdminLoginIssuesAdminToken(t *testing.T) {
	svc, _ := authFixture()

	resp, err := svc.AdminLogin(context.Background(), "admin@example.com", "password123")
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}

	claims, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeAdmin {
		t.Errorf("token type = %s, want admin", claims.TokenType)
	}
	if claims.UserID != 1 {
		t.Errorf("user id = %d, want 1", claims.UserID)
	}
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := authFixture()
	ctx := context.Background()

	if _, err := svc.AdminLogin(ctx, "admin@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.AdminLogin(ctx, "ghost@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown admin err = %v, want ErrInvalidCredentials", err)
	}
}

func TestValidateTokenRejectsForgeries(t *testing.T) {
	svc, _ := authFixture()

	resp, err := svc.AdminLogin(context.Background(), "admin@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}

	// A token signed with a different secret does not validate.
	other := NewAuthService(&config.Config{JWTSecret: "other-secret", JWTExpiry: time.Hour}, nil, nil)
	if _, err := other.ValidateToken(resp.Token); err == nil {
		t.Error("token accepted under a different secret")
	}

	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage token accepted")
	}
}
