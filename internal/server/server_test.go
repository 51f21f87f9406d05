package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dritonf/cerdhe/internal/cache"
	"github.com/dritonf/cerdhe/internal/database"
	"github.com/dritonf/cerdhe/internal/model"
	"github.com/dritonf/cerdhe/internal/store"
	"github.com/dritonf/cerdhe/internal/token"
)

type testEnv struct {
	router   http.Handler
	gateway  *cache.Gateway
	issuer   *token.Issuer
	teachers *store.TeacherStore
	users    *store.UserStore
	kids     *store.KidStore
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	gateway := cache.NewGateway(cache.NewMemory(), time.Hour, logger)
	issuer := token.NewIssuer("test-secret", time.Hour)
	srv := New(db, gateway, issuer, logger)

	return &testEnv{
		router:   srv.Router(),
		gateway:  gateway,
		issuer:   issuer,
		teachers: store.NewTeacherStore(db),
		users:    store.NewUserStore(db),
		kids:     store.NewKidStore(db),
	}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) tokenFor(t *testing.T, role string, userID int64, email string) string {
	t.Helper()
	signed, err := e.issuer.Sign(token.Principal{UserID: userID, Role: role, Email: email})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(t, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestSignInFlow(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, "POST", "/v1/users", "", map[string]any{
		"first_name": "Arta",
		"last_name":  "Berisha",
		"email":      "arta@example.com",
		"password":   "hunter2",
		"role":       "admin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "POST", "/v1/signin", "", map[string]string{
		"email":    "arta@example.com",
		"password": "hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	signed, _ := body["token"].(string)
	if signed == "" {
		t.Fatal("expected a token in the signin response")
	}

	// The issued token opens an admin-only route.
	rec = env.do(t, "GET", "/v1/users", signed, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("list users status = %d, want 200", rec.Code)
	}

	// Bad credentials never issue a token.
	rec = env.do(t, "POST", "/v1/signin", "", map[string]string{
		"email":    "arta@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong password status = %d, want 400", rec.Code)
	}
	rec = env.do(t, "POST", "/v1/signin", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "hunter2",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown email status = %d, want 400", rec.Code)
	}
}

func TestTokenContract(t *testing.T) {
	env := setupTestServer(t)

	// No token at all.
	rec := env.do(t, "GET", "/v1/users", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Token not set" {
		t.Errorf("message = %q, want %q", body["message"], "Token not set")
	}

	// A token signed with a different secret.
	forged, err := token.NewIssuer("other-secret", time.Hour).Sign(token.Principal{UserID: 1, Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec = env.do(t, "GET", "/v1/users", forged, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Token not valid" {
		t.Errorf("message = %q, want %q", body["message"], "Token not valid")
	}
}

func TestRoleEnforcement(t *testing.T) {
	env := setupTestServer(t)
	adminTok := env.tokenFor(t, model.RoleAdmin, 1, "admin@example.com")
	userTok := env.tokenFor(t, model.RoleUser, 2, "parent@example.com")

	tests := []struct {
		method string
		path   string
		body   any
		tok    string
		want   int
	}{
		{"GET", "/v1/users", nil, userTok, http.StatusForbidden},
		{"GET", "/v1/users", nil, adminTok, http.StatusOK},
		{"POST", "/v1/teachers", map[string]string{"first_name": "Vera", "last_name": "Hoxha"}, userTok, http.StatusForbidden},
		{"POST", "/v1/meals", map[string]string{"name": "Soup"}, userTok, http.StatusForbidden},
		{"GET", "/v1/meals", nil, userTok, http.StatusOK},
		{"GET", "/v1/kids", nil, userTok, http.StatusOK},
		{"POST", "/v1/kids", map[string]string{"first_name": "Lule"}, userTok, http.StatusForbidden},
	}

	for _, tt := range tests {
		rec := env.do(t, tt.method, tt.path, tt.tok, tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
		if tt.want == http.StatusForbidden {
			if body := decodeBody(t, rec); body["message"] != "Access denied" {
				t.Errorf("%s %s: message = %q, want %q", tt.method, tt.path, body["message"], "Access denied")
			}
		}
	}
}

func TestPublicReads(t *testing.T) {
	env := setupTestServer(t)

	for _, path := range []string{"/v1/teachers", "/v1/activities"} {
		rec := env.do(t, "GET", path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRegisterWithKid(t *testing.T) {
	env := setupTestServer(t)

	teacher, err := env.teachers.Create("Vera", "Hoxha", "", "")
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}

	rec := env.do(t, "POST", "/v1/users", "", map[string]any{
		"first_name": "Driton",
		"last_name":  "Gashi",
		"email":      "driton@example.com",
		"password":   "hunter2",
		"kid": map[string]any{
			"first_name":     "Lule",
			"last_name":      "Gashi",
			"guardian_phone": "044333444",
			"teacher_id":     teacher.ID,
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "GET", "/v1/kids/my-kid?email=driton@example.com", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my-kid status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["first_name"] != "Lule" {
		t.Errorf("kid first_name = %q, want Lule", body["first_name"])
	}
	if body["guardian_email"] != "driton@example.com" {
		t.Errorf("guardian_email = %q, want driton@example.com", body["guardian_email"])
	}
}

func TestRegisterUnknownTeacherIsAtomic(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, "POST", "/v1/users", "", map[string]any{
		"first_name": "Driton",
		"last_name":  "Gashi",
		"email":      "driton@example.com",
		"password":   "hunter2",
		"kid": map[string]any{
			"first_name": "Lule",
			"last_name":  "Gashi",
			"teacher_id": 999,
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}

	// Neither row may exist after the rollback.
	u, err := env.users.GetByEmail("driton@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u != nil {
		t.Error("expected no account after rolled-back registration")
	}
	kids, err := env.kids.List()
	if err != nil {
		t.Fatalf("list kids: %v", err)
	}
	if len(kids) != 0 {
		t.Errorf("kids = %d, want 0", len(kids))
	}
}

func TestTeacherWriteInvalidatesCache(t *testing.T) {
	env := setupTestServer(t)
	adminTok := env.tokenFor(t, model.RoleAdmin, 1, "admin@example.com")

	// Prime the cache, then confirm the second read is a hit.
	env.do(t, "GET", "/v1/teachers", "", nil)
	env.do(t, "GET", "/v1/teachers", "", nil)
	if env.gateway.Hits() != 1 {
		t.Errorf("hits = %d, want 1", env.gateway.Hits())
	}

	rec := env.do(t, "POST", "/v1/teachers", adminTok, map[string]string{
		"first_name": "Vera",
		"last_name":  "Hoxha",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create teacher status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	env.gateway.Flush()

	rec = env.do(t, "GET", "/v1/teachers", "", nil)
	var teachers []model.Teacher
	if err := json.NewDecoder(rec.Body).Decode(&teachers); err != nil {
		t.Fatalf("decode teachers: %v", err)
	}
	if len(teachers) != 1 || teachers[0].FirstName != "Vera" {
		t.Errorf("teachers = %+v, want the freshly created row", teachers)
	}
}

func TestUserUpdateMovesKidCacheKey(t *testing.T) {
	env := setupTestServer(t)

	teacher, err := env.teachers.Create("Vera", "Hoxha", "", "")
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	user, err := env.users.CreateWithKid("Driton", "Gashi", "driton@example.com", "$2a$10$fakehashfakehashfakeha", "user", &store.KidParams{
		FirstName: "Lule",
		LastName:  "Gashi",
		TeacherID: teacher.ID,
	})
	if err != nil {
		t.Fatalf("create user with kid: %v", err)
	}
	userTok := env.tokenFor(t, model.RoleUser, user.ID, user.Email)

	// Prime the kid cache under the old email.
	rec := env.do(t, "GET", "/v1/kids/my-kid?email=driton@example.com", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my-kid status = %d, want 200", rec.Code)
	}

	rec = env.do(t, "PUT", fmt.Sprintf("/v1/users/%d", user.ID), userTok, map[string]string{
		"first_name": "Dren",
		"last_name":  "Gashi",
		"email":      "dren@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	env.gateway.Flush()

	// The kid follows the account's new guardian identity.
	rec = env.do(t, "GET", "/v1/kids/my-kid?email=dren@example.com", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my-kid status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["guardian_first_name"] != "Dren" {
		t.Errorf("guardian_first_name = %q, want Dren", body["guardian_first_name"])
	}

	// The old email no longer resolves to an account.
	rec = env.do(t, "GET", "/v1/kids/my-kid?email=driton@example.com", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("old email status = %d, want 404", rec.Code)
	}
}

func TestUserDeleteRemovesKid(t *testing.T) {
	env := setupTestServer(t)

	teacher, err := env.teachers.Create("Vera", "Hoxha", "", "")
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	user, err := env.users.CreateWithKid("Driton", "Gashi", "driton@example.com", "hash", "user", &store.KidParams{
		FirstName: "Lule",
		LastName:  "Gashi",
		TeacherID: teacher.ID,
	})
	if err != nil {
		t.Fatalf("create user with kid: %v", err)
	}
	userTok := env.tokenFor(t, model.RoleUser, user.ID, user.Email)

	rec := env.do(t, "DELETE", fmt.Sprintf("/v1/users/%d", user.ID), userTok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	env.gateway.Flush()

	kids, err := env.kids.List()
	if err != nil {
		t.Fatalf("list kids: %v", err)
	}
	if len(kids) != 0 {
		t.Errorf("kids = %d, want 0", len(kids))
	}
	rec = env.do(t, "GET", "/v1/kids/my-kid?email=driton@example.com", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("my-kid status = %d, want 404", rec.Code)
	}
}

func TestTeacherDeleteInvalidatesKidCaches(t *testing.T) {
	env := setupTestServer(t)
	adminTok := env.tokenFor(t, model.RoleAdmin, 1, "admin@example.com")

	teacher, err := env.teachers.Create("Vera", "Hoxha", "", "")
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	user, err := env.users.CreateWithKid("Driton", "Gashi", "driton@example.com", "hash", "user", &store.KidParams{
		FirstName: "Lule",
		LastName:  "Gashi",
		TeacherID: teacher.ID,
	})
	if err != nil {
		t.Fatalf("create user with kid: %v", err)
	}
	_ = user

	// Prime the per-kid cache entry.
	rec := env.do(t, "GET", "/v1/kids/my-kid?email=driton@example.com", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my-kid status = %d, want 200", rec.Code)
	}

	rec = env.do(t, "DELETE", fmt.Sprintf("/v1/teachers/%d", teacher.ID), adminTok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete teacher status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	env.gateway.Flush()

	// The kid row cascaded away; the cached entry must not resurrect it.
	rec = env.do(t, "GET", "/v1/kids/my-kid?email=driton@example.com", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("my-kid status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateRejectsTakenEmail(t *testing.T) {
	env := setupTestServer(t)

	u1, err := env.users.CreateWithKid("Arta", "Berisha", "arta@example.com", "hash", "user", nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := env.users.CreateWithKid("Driton", "Gashi", "driton@example.com", "hash", "user", nil); err != nil {
		t.Fatalf("create user: %v", err)
	}
	tok := env.tokenFor(t, model.RoleUser, u1.ID, u1.Email)

	rec := env.do(t, "PUT", fmt.Sprintf("/v1/users/%d", u1.ID), tok, map[string]string{
		"first_name": "Arta",
		"last_name":  "Berisha",
		"email":      "driton@example.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}
