// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/db"
	"github.com/monocle-dev/taskhub/internal/auth"
	"github.com/monocle-dev/taskhub/internal/models"
	"github.com/monocle-dev/taskhub/internal/types"
)

// Password is the plaintext every fixture user is created with.
const Password = "Secret#123"

// Hasher is a fast bcrypt hasher for tests.
var Hasher = auth.BcryptHasher{Cost: bcrypt.MinCost}

var seq atomic.Int64

// NewDB returns a migrated in-memory SQLite database with foreign keys on.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := db.ConnectDatabase("sqlite://:memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.MigrateDatabase(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

// CreateUser inserts a verified user with Password. An empty name gets a
// unique one.
func CreateUser(t testing.TB, conn *gorm.DB, username string, role types.Role) *models.User {
	t.Helper()

	if username == "" {
		username = fmt.Sprintf("user%d", seq.Add(1))
	}
	if role == "" {
		role = types.RoleNormal
	}

	hash, err := Hasher.Hash(Password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	user := &models.User{
		Username:        username,
		Email:           username + "@example.com",
		PasswordHash:    hash,
		Role:            role,
		IsEmailVerified: true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreateProject inserts a project with its creator as project_admin.
func CreateProject(t testing.TB, conn *gorm.DB, name string, creator *models.User) *models.Project {
	t.Helper()

	project := &models.Project{Name: name, CreatedByID: creator.ID}
	if err := conn.Create(project).Error; err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	AddMember(t, conn, project, creator, types.RoleProjectAdmin)
	return project
}

func AddMember(t testing.TB, conn *gorm.DB, project *models.Project, user *models.User, role types.Role) {
	t.Helper()

	m := &models.ProjectMembership{ProjectID: project.ID, UserID: user.ID, Role: role}
	if err := conn.Create(m).Error; err != nil {
		t.Fatalf("add member %d to %d: %v", user.ID, project.ID, err)
	}
}

// CountRows returns the number of rows in model's table matching where.
func CountRows(t testing.TB, conn *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()

	var n int64
	q := conn.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
