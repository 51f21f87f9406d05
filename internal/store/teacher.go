package store

import (
	"database/sql"
	"fmt"

	"github.com/dritonf/cerdhe/internal/model"
)

type TeacherStore struct {
	db *sql.DB
}

func NewTeacherStore(db *sql.DB) *TeacherStore {
	return &TeacherStore{db: db}
}

const teacherCols = `id, first_name, last_name, phone, image_url, created_at, updated_at`

func scanTeacher(scanner interface{ Scan(...any) error }) (*model.Teacher, error) {
	var t model.Teacher
	err := scanner.Scan(&t.ID, &t.FirstName, &t.LastName, &t.Phone, &t.ImageURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TeacherStore) Create(firstName, lastName, phone, imageURL string) (*model.Teacher, error) {
	result, err := s.db.Exec(
		`INSERT INTO teachers (first_name, last_name, phone, image_url) VALUES (?, ?, ?, ?)`,
		firstName, lastName, phone, imageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert teacher: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TeacherStore) List() ([]model.Teacher, error) {
	rows, err := s.db.Query(`SELECT ` + teacherCols + ` FROM teachers ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("query teachers: %w", err)
	}
	defer rows.Close()

	var teachers []model.Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan teacher: %w", err)
		}
		teachers = append(teachers, *t)
	}
	return teachers, rows.Err()
}

func (s *TeacherStore) GetByID(id int64) (*model.Teacher, error) {
	row := s.db.QueryRow(`SELECT `+teacherCols+` FROM teachers WHERE id = ?`, id)
	t, err := scanTeacher(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	return t, nil
}

func (s *TeacherStore) Update(id int64, firstName, lastName, phone, imageURL string) (*model.Teacher, error) {
	_, err := s.db.Exec(
		`UPDATE teachers SET first_name = ?, last_name = ?, phone = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		firstName, lastName, phone, imageURL, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update teacher: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the teacher. Kids and activities referencing the teacher
// are removed by the schema's cascade rule.
func (s *TeacherStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM teachers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return nil
}

// Exists reports whether a teacher row exists. Foreign-key-bearing writes
// check this before inserting.
func (s *TeacherStore) Exists(id int64) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM teachers WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check teacher exists: %w", err)
	}
	return count > 0, nil
}
