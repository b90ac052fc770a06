package store

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"github.com/go-buildgate/buildgate/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RoleUser and RoleAdmin are the role titles seeded on first run.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

type Store struct {
	db *gorm.DB
}

// openDialector maps the configured driver name to its gorm dialector.
// sqlite serves single-node deployments, postgres shared ones.
func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.AuditLog{},
	); err != nil {
		return nil, err
	}

	store := &Store{db: db}

	// Seed default data
	if err := store.seedData(); err != nil {
		log.Printf("Warning: failed to seed data: %v", err)
	}

	return store, nil
}

// generateRandomPassword generates a random password of specified length
func generateRandomPassword(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	// Use base64 URL encoding to get a safe, printable password
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

func (s *Store) seedData() error {
	// Create default roles if not present
	for _, title := range []string{RoleAdmin, RoleUser} {
		var count int64
		s.db.Model(&models.Role{}).Where("title = ?", title).Count(&count)
		if count == 0 {
			role := &models.Role{ID: uuid.New().String(), Title: title}
			if err := s.db.Create(role).Error; err != nil {
				return err
			}
		}
	}

	// Create default admin user if no user exists yet
	var userCount int64
	s.db.Model(&models.User{}).Count(&userCount)
	if userCount == 0 {
		password, err := generateRandomPassword(16)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		adminRole, err := s.GetRoleByTitle(RoleAdmin)
		if err != nil {
			return err
		}
		user := &models.User{
			ID:           uuid.New().String(),
			Login:        "admin",
			Email:        "admin@localhost",
			PasswordHash: string(hash),
			State:        models.StateConfirmed,
			Roles:        []models.Role{*adminRole},
		}
		if err := s.db.Create(user).Error; err != nil {
			return err
		}
		log.Printf("Created default user: admin / %s (role: Admin)", password)
	}

	return nil
}

// User operations

// GetUserByLogin finds a user by login in any state, with roles preloaded.
func (s *Store) GetUserByLogin(login string) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Roles").Where("login = ?", login).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetConfirmedUserByLogin finds a user by login restricted to confirmed state.
func (s *Store) GetConfirmedUserByLogin(login string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Roles").
		Where("login = ? AND state = ?", login, models.StateConfirmed).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// VerifyCredentials checks login and password against the local store.
// Only confirmed accounts may authenticate.
func (s *Store) VerifyCredentials(login, password string) (*models.User, error) {
	user, err := s.GetUserByLogin(login)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash),
		[]byte(password),
	); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsConfirmed() {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateUserEmail persists a changed email address only.
func (s *Store) UpdateUserEmail(user *models.User, email string) error {
	if err := s.db.Model(user).Update("email", email).Error; err != nil {
		return fmt.Errorf("failed to update email for %s: %w", user.Login, err)
	}
	user.Email = email
	return nil
}

// GetRoleByTitle finds a role by its title.
func (s *Store) GetRoleByTitle(title string) (*models.Role, error) {
	var role models.Role
	if err := s.db.Where("title = ?", title).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &role, nil
}

// validateNewUser mirrors the persistence layer's record validations.
func validateNewUser(user *models.User) *ValidationError {
	var msgs []string
	if strings.TrimSpace(user.Login) == "" {
		msgs = append(msgs, "login must not be empty")
	}
	if user.Email == "" {
		msgs = append(msgs, "email must not be empty")
	} else if _, err := mail.ParseAddress(user.Email); err != nil {
		msgs = append(msgs, fmt.Sprintf("email %q is not a valid address", user.Email))
	}
	if user.PasswordHash == "" {
		msgs = append(msgs, "password must not be empty")
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// CreateUser persists a new user with the given roles inside a transaction,
// so a failed create never leaves a partial record behind.
func (s *Store) CreateUser(user *models.User, roleTitles ...string) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if verr := validateNewUser(user); verr != nil {
		return verr
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var conflict models.User
		err := tx.Where("login = ?", user.Login).First(&conflict).Error
		if err == nil {
			return ErrLoginConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check login: %w", err)
		}

		for _, title := range roleTitles {
			var role models.Role
			if err := tx.Where("title = ?", title).First(&role).Error; err != nil {
				return fmt.Errorf("role %q not found: %w", title, err)
			}
			user.Roles = append(user.Roles, role)
		}

		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

// Audit log operations

func (s *Store) CreateAuditLog(entry *models.AuditLog) error {
	return s.db.Create(entry).Error
}

func (s *Store) CreateAuditLogs(entries []*models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.Create(entries).Error
}

// Health verifies database connectivity
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB exposes the underlying gorm handle for tests
func (s *Store) DB() *gorm.DB {
	return s.db
}
