package model

import "time"

type Meal struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Weekday     string    `json:"weekday"`
	TimeOfDay   string    `json:"time_of_day"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
