package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/repository"
	"github.com/noah-isme/lecture-intel-api/pkg/config"
	"github.com/noah-isme/lecture-intel-api/pkg/database"
	"github.com/noah-isme/lecture-intel-api/pkg/logger"
)

const usage = `usage: migrate [-steps N] [-version V] <up|down|version|force>
       migrate -email E -password P [-name N] [-role R] [-student ID] create-user`

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	version := flag.Int("version", -1, "schema version to record with force")
	email := flag.String("email", "", "account email for create-user")
	password := flag.String("password", "", "account password for create-user")
	name := flag.String("name", "", "display name for create-user")
	role := flag.String("role", string(models.RoleAdmin), "ADMIN, PROFESSOR or STUDENT")
	studentID := flag.String("student", "", "roster id linked to a STUDENT account")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if flag.Arg(0) == "create-user" {
		user, err := createUser(db, *email, *password, *name, *role, *studentID)
		if err != nil {
			logr.Fatal("create-user failed", zap.Error(err))
		}
		logr.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
		return
	}

	migrator, err := database.NewMigrator(db.DB, logr)
	if err != nil {
		logr.Fatal("failed to init migrator", zap.Error(err))
	}

	switch flag.Arg(0) {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down(*steps)
	case "version":
		var (
			current uint
			dirty   bool
		)
		current, dirty, err = migrator.Version()
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", current, dirty)
		}
	case "force":
		if *version < 0 {
			logr.Fatal("force requires -version")
		}
		err = migrator.Force(*version)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}

func createUser(db *sqlx.DB, email, password, name, role, studentID string) (*models.User, error) {
	if email == "" || len(password) < 8 {
		return nil, fmt.Errorf("-email and a -password of at least 8 characters are required")
	}
	user := &models.User{
		ID:       uuid.NewString(),
		Email:    email,
		FullName: name,
		Role:     models.UserRole(strings.ToUpper(role)),
		Active:   true,
	}
	switch user.Role {
	case models.RoleAdmin, models.RoleProfessor:
	case models.RoleStudent:
		if studentID == "" {
			return nil, fmt.Errorf("STUDENT accounts need -student")
		}
		user.StudentID = &studentID
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repository.NewUserRepository(db).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
