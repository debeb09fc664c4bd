package types

import (
	"os"
	"strings"
)

const ContextIdentityKey = "identity"

// Role covers both the global role stored on a user and the project scoped
// role stored on a membership.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleNormal       Role = "normal"
	RoleProjectAdmin Role = "project_admin"
	RoleMember       Role = "member"
)

func (r Role) IsProjectRole() bool {
	return r == RoleMember || r == RoleProjectAdmin
}

func (r Role) IsGlobalRole() bool {
	return r == RoleAdmin || r == RoleNormal
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

var AvailableTaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskDone}

func (s TaskStatus) Valid() bool {
	for _, status := range AvailableTaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Markdown variants accepted for task attachments.
var AllowedAttachmentTypes = []string{"text/markdown", "text/x-markdown"}

const MaxAttachmentsPerRequest = 5

var (
	// Default allowed origins for development
	defaultOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}

	AllowedOrigins = initAllowedOrigins()
)

func initAllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		envOrigins := strings.Split(allowedOrigins, ",")
		for _, origin := range envOrigins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
