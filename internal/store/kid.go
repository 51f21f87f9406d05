package store

import (
	"database/sql"
	"fmt"

	"github.com/dritonf/cerdhe/internal/model"
)

type KidStore struct {
	db       *sql.DB
	teachers *TeacherStore
}

func NewKidStore(db *sql.DB) *KidStore {
	return &KidStore{db: db, teachers: NewTeacherStore(db)}
}

const kidCols = `id, first_name, last_name, guardian_first_name, guardian_email, guardian_phone, teacher_id, user_id, created_at, updated_at`

func scanKid(scanner interface{ Scan(...any) error }) (*model.Kid, error) {
	var k model.Kid
	err := scanner.Scan(&k.ID, &k.FirstName, &k.LastName, &k.GuardianFirstName, &k.GuardianEmail,
		&k.GuardianPhone, &k.TeacherID, &k.UserID, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Create validates that the referenced teacher exists before inserting and
// returns ErrUnknownTeacher otherwise.
func (s *KidStore) Create(firstName, lastName, guardianFirstName, guardianEmail, guardianPhone string, teacherID, userID int64) (*model.Kid, error) {
	ok, err := s.teachers.Exists(teacherID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownTeacher
	}

	result, err := s.db.Exec(
		`INSERT INTO kids (first_name, last_name, guardian_first_name, guardian_email, guardian_phone, teacher_id, user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		firstName, lastName, guardianFirstName, guardianEmail, guardianPhone, teacherID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert kid: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *KidStore) List() ([]model.Kid, error) {
	rows, err := s.db.Query(`SELECT ` + kidCols + ` FROM kids ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query kids: %w", err)
	}
	defer rows.Close()
	return collectKids(rows)
}

// ListByTeacher returns the kids assigned to a teacher. Used to enumerate
// the guardian-email cache keys affected by a teacher's cascade delete.
func (s *KidStore) ListByTeacher(teacherID int64) ([]model.Kid, error) {
	rows, err := s.db.Query(`SELECT `+kidCols+` FROM kids WHERE teacher_id = ? ORDER BY id`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("query kids by teacher: %w", err)
	}
	defer rows.Close()
	return collectKids(rows)
}

func collectKids(rows *sql.Rows) ([]model.Kid, error) {
	var kids []model.Kid
	for rows.Next() {
		k, err := scanKid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kid: %w", err)
		}
		kids = append(kids, *k)
	}
	return kids, rows.Err()
}

func (s *KidStore) GetByID(id int64) (*model.Kid, error) {
	row := s.db.QueryRow(`SELECT `+kidCols+` FROM kids WHERE id = ?`, id)
	k, err := scanKid(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get kid: %w", err)
	}
	return k, nil
}

// GetByGuardianEmail looks up the kid owned by the account with the given
// email. This backs the kid-by-guardian-email cache key.
func (s *KidStore) GetByGuardianEmail(email string) (*model.Kid, error) {
	row := s.db.QueryRow(`SELECT `+kidCols+` FROM kids WHERE guardian_email = ?`, email)
	k, err := scanKid(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get kid by guardian email: %w", err)
	}
	return k, nil
}

func (s *KidStore) Update(id int64, firstName, lastName, guardianFirstName, guardianEmail, guardianPhone string) (*model.Kid, error) {
	_, err := s.db.Exec(
		`UPDATE kids SET first_name = ?, last_name = ?, guardian_first_name = ?, guardian_email = ?, guardian_phone = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		firstName, lastName, guardianFirstName, guardianEmail, guardianPhone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update kid: %w", err)
	}
	return s.GetByID(id)
}

func (s *KidStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM kids WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete kid: %w", err)
	}
	return nil
}
