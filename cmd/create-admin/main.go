package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/database"
	"github.com/certeon/certexam-backend/internal/logger"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// create-admin provisions a platform operator account interactively.
// Admin accounts cannot self-register through the API.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	in := bufio.NewReader(os.Stdin)

	name, err := prompt(in, "Name")
	if err != nil {
		fail(err)
	}
	email, err := prompt(in, "Email")
	if err != nil {
		fail(err)
	}
	if !strings.Contains(email, "@") {
		fail(fmt.Errorf("%q does not look like an email address", email))
	}

	fmt.Print("Password: ")
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fail(fmt.Errorf("read password: %w", err))
	}
	if len(secret) < 6 {
		fail(fmt.Errorf("password must be at least 6 characters"))
	}

	hash, err := bcrypt.GenerateFromPassword(secret, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	admin := &model.Admin{Name: name, Email: email, PasswordHash: string(hash)}
	if err := repository.NewUserRepository(pool).CreateAdmin(ctx, admin); err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("Created admin %q (%s), id=%d\n", admin.Name, admin.Email, admin.ID)
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return line, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
