package store

import (
	"database/sql"
	"fmt"

	"github.com/dritonf/cerdhe/internal/model"
)

type MealStore struct {
	db *sql.DB
}

func NewMealStore(db *sql.DB) *MealStore {
	return &MealStore{db: db}
}

const mealCols = `id, name, description, weekday, time_of_day, created_at, updated_at`

func scanMeal(scanner interface{ Scan(...any) error }) (*model.Meal, error) {
	var m model.Meal
	err := scanner.Scan(&m.ID, &m.Name, &m.Description, &m.Weekday, &m.TimeOfDay, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MealStore) Create(name, description, weekday, timeOfDay string) (*model.Meal, error) {
	result, err := s.db.Exec(
		`INSERT INTO meals (name, description, weekday, time_of_day) VALUES (?, ?, ?, ?)`,
		name, description, weekday, timeOfDay,
	)
	if err != nil {
		return nil, fmt.Errorf("insert meal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MealStore) List() ([]model.Meal, error) {
	rows, err := s.db.Query(`SELECT ` + mealCols + ` FROM meals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query meals: %w", err)
	}
	defer rows.Close()

	var meals []model.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		meals = append(meals, *m)
	}
	return meals, rows.Err()
}

func (s *MealStore) GetByID(id int64) (*model.Meal, error) {
	row := s.db.QueryRow(`SELECT `+mealCols+` FROM meals WHERE id = ?`, id)
	m, err := scanMeal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal: %w", err)
	}
	return m, nil
}

func (s *MealStore) Update(id int64, name, description, weekday, timeOfDay string) (*model.Meal, error) {
	_, err := s.db.Exec(
		`UPDATE meals SET name = ?, description = ?, weekday = ?, time_of_day = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, weekday, timeOfDay, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update meal: %w", err)
	}
	return s.GetByID(id)
}

func (s *MealStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM meals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	return nil
}
