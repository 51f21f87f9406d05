package model

import "time"

// Kid belongs to exactly one teacher and one user account. The guardian
// fields duplicate the owning account's identity as a read optimization;
// the user store keeps them in sync on account edits.
type Kid struct {
	ID                int64     `json:"id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	GuardianFirstName string    `json:"guardian_first_name"`
	GuardianEmail     string    `json:"guardian_email"`
	GuardianPhone     string    `json:"guardian_phone"`
	TeacherID         int64     `json:"teacher_id"`
	UserID            int64     `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
