package validation

// Account payloads.

type Register struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,alpha,min=3,max=32"`
	Password string `json:"password" validate:"required,password"`
	FullName string `json:"fullName" validate:"omitempty,alpha,max=64"`
}

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=64"`
}

type ForgotPassword struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPassword struct {
	NewPassword string `json:"newPassword" validate:"required,password"`
}

type ChangePassword struct {
	OldPassword string `json:"oldPassword" validate:"required,min=8,max=64"`
	NewPassword string `json:"newPassword" validate:"required,password,nefield=OldPassword"`
}

type SetGlobalRole struct {
	Role string `json:"role" validate:"required,global_role"`
}

// Project payloads.

type ProjectDetails struct {
	Name        string `json:"name" validate:"required,min=5,max=50"`
	Description string `json:"description" validate:"max=2000"`
}

type AddMember struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,project_role"`
}

// Work item payloads.

type TaskDetails struct {
	Title       string `json:"title" form:"title" validate:"required,min=5,max=100"`
	Description string `json:"description" form:"description" validate:"required,min=10,max=2000"`
	AssignedTo  *uint  `json:"assignedTo" form:"assignedTo" validate:"omitempty,gt=0"`
	Status      string `json:"status" form:"status" validate:"omitempty,task_status"`
}

type TaskUpdate struct {
	Title       *string `json:"title" form:"title" validate:"omitempty,min=5,max=100"`
	Description *string `json:"description" form:"description" validate:"omitempty,min=10,max=2000"`
	AssignedTo  *uint   `json:"assignedTo" form:"assignedTo" validate:"omitempty,gt=0"`
	Status      *string `json:"status" form:"status" validate:"omitempty,task_status"`
}

type SubtaskDetails struct {
	Title       string `json:"title" validate:"required,min=5,max=50"`
	Description string `json:"description" validate:"max=2000"`
}

type SubtaskUpdate struct {
	Title       *string `json:"title" validate:"omitempty,min=5,max=50"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Completed   *bool   `json:"completed"`
}

type NoteDetails struct {
	Title   string `json:"title" validate:"required,min=5,max=50"`
	Content string `json:"content" validate:"max=1000"`
}
