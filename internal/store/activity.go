package store

import (
	"database/sql"
	"fmt"

	"github.com/dritonf/cerdhe/internal/model"
)

type ActivityStore struct {
	db       *sql.DB
	teachers *TeacherStore
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db, teachers: NewTeacherStore(db)}
}

const activityCols = `id, name, description, teacher_id, created_at, updated_at`

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	err := scanner.Scan(&a.ID, &a.Name, &a.Description, &a.TeacherID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create validates that the referenced teacher exists before inserting and
// returns ErrUnknownTeacher otherwise.
func (s *ActivityStore) Create(name, description string, teacherID int64) (*model.Activity, error) {
	ok, err := s.teachers.Exists(teacherID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownTeacher
	}

	result, err := s.db.Exec(
		`INSERT INTO activities (name, description, teacher_id) VALUES (?, ?, ?)`,
		name, description, teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ActivityStore) List() ([]model.Activity, error) {
	rows, err := s.db.Query(`SELECT ` + activityCols + ` FROM activities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func (s *ActivityStore) GetByID(id int64) (*model.Activity, error) {
	row := s.db.QueryRow(`SELECT `+activityCols+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

func (s *ActivityStore) Update(id int64, name, description string) (*model.Activity, error) {
	_, err := s.db.Exec(
		`UPDATE activities SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update activity: %w", err)
	}
	return s.GetByID(id)
}

func (s *ActivityStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}
