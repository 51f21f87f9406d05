package cache

import "strconv"

// Key scheme shared with any other process using the same cache service:
// one key per collection, plus single-entity keys addressed by a
// non-primary attribute.
const (
	KeyUsers      = "users"
	KeyTeachers   = "teachers"
	KeyKids       = "kids"
	KeyActivities = "activities"
	KeyMeals      = "meals"
)

// UserKey is the profile-by-id key.
func UserKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

// KidKey is the kid-by-guardian-email key.
func KidKey(guardianEmail string) string {
	return "kid:" + guardianEmail
}
