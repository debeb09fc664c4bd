package types

import "time"

type UserResponse struct {
	ID              uint      `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name,omitempty"`
	Role            Role      `json:"role"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ProjectResponse struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	CreatedBy   *UserSummary `json:"created_by,omitempty"`
	Role        Role         `json:"role,omitempty"`
	MemberCount int64        `json:"member_count"`
	CreatedAt   time.Time    `json:"created_at"`
}

type MemberResponse struct {
	ID        uint        `json:"id"`
	ProjectID uint        `json:"project_id"`
	User      UserSummary `json:"user"`
	Role      Role        `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

type TaskDetailResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ProjectID   uint              `json:"project_id"`
	Status      TaskStatus        `json:"status"`
	AssignedTo  *UserSummary      `json:"assigned_to"`
	AssignedBy  uint              `json:"assigned_by"`
	Attachments any               `json:"attachments"`
	Subtasks    []SubtaskResponse `json:"subtasks"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type SubtaskResponse struct {
	ID          uint         `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	TaskID      uint         `json:"task_id"`
	IsCompleted bool         `json:"is_completed"`
	CreatedBy   *UserSummary `json:"created_by"`
}
