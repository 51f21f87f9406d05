package store

import (
	"database/sql"
	"fmt"

	"github.com/dritonf/cerdhe/internal/model"
)

// UserStore owns account rows and the transactional writes that span the
// users and kids tables. An account and its kid are created and deleted as
// one atomic unit, and account edits propagate the denormalized guardian
// fields to the kid row in the same transaction.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// KidParams carries the kid fields supplied at registration. The guardian
// email and guardian first name are copied from the account, never taken
// from the client.
type KidParams struct {
	FirstName     string
	LastName      string
	GuardianPhone string
	TeacherID     int64
}

const userCols = `id, first_name, last_name, email, password, role, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// EmailExists reports whether another account already uses the email.
func (s *UserStore) EmailExists(email string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = ? AND id != ?`, email, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return count > 0, nil
}

// CreateWithKid inserts the account and, when kid is non-nil, its kid row
// in a single transaction. Any failure rolls the whole operation back: no
// account without its kid, no orphaned kid. Returns ErrDuplicateEmail or
// ErrUnknownTeacher before any row is written.
func (s *UserStore) CreateWithKid(firstName, lastName, email, passwordHash, role string, kid *KidParams) (*model.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&count); err != nil {
		return nil, fmt.Errorf("check email exists: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateEmail
	}

	if kid != nil {
		if err := tx.QueryRow(`SELECT COUNT(*) FROM teachers WHERE id = ?`, kid.TeacherID).Scan(&count); err != nil {
			return nil, fmt.Errorf("check teacher exists: %w", err)
		}
		if count == 0 {
			return nil, ErrUnknownTeacher
		}
	}

	result, err := tx.Exec(
		`INSERT INTO users (first_name, last_name, email, password, role) VALUES (?, ?, ?, ?, ?)`,
		firstName, lastName, email, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if kid != nil {
		_, err = tx.Exec(
			`INSERT INTO kids (first_name, last_name, guardian_first_name, guardian_email, guardian_phone, teacher_id, user_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			kid.FirstName, kid.LastName, firstName, email, kid.GuardianPhone, kid.TeacherID, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("insert kid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(userID)
}

// Update edits the account and keeps the kid's denormalized guardian
// identity (email and first name) in sync in the same transaction. An
// empty passwordHash keeps the stored hash.
func (s *UserStore) Update(id int64, firstName, lastName, email, passwordHash, role string) (*model.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanUser(tx.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if passwordHash == "" {
		_, err = tx.Exec(
			`UPDATE users SET first_name = ?, last_name = ?, email = ?, role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			firstName, lastName, email, role, id,
		)
	} else {
		_, err = tx.Exec(
			`UPDATE users SET first_name = ?, last_name = ?, email = ?, password = ?, role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			firstName, lastName, email, passwordHash, role, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if current.Email != email || current.FirstName != firstName {
		_, err = tx.Exec(
			`UPDATE kids SET guardian_email = ?, guardian_first_name = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
			email, firstName, id,
		)
		if err != nil {
			return nil, fmt.Errorf("sync kid guardian fields: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(id)
}

// DeleteWithKid removes the account and its kid (if any) in a single
// transaction, kid first. It returns the deleted kid so the caller can
// invalidate the kid's cache keys after the commit.
func (s *UserStore) DeleteWithKid(id int64) (*model.Kid, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	kid, err := scanKid(tx.QueryRow(`SELECT `+kidCols+` FROM kids WHERE user_id = ?`, id))
	if err == sql.ErrNoRows {
		kid = nil
	} else if err != nil {
		return nil, fmt.Errorf("get kid for user: %w", err)
	}

	if kid != nil {
		if _, err := tx.Exec(`DELETE FROM kids WHERE id = ?`, kid.ID); err != nil {
			return nil, fmt.Errorf("delete kid: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return kid, nil
}
