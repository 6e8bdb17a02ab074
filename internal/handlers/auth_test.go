package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/chachabrian/clearinghouse-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return db, mock
}

var userColumns = []string{"id", "provider_id", "email", "name", "password_hash", "role", "active"}

func hashed(t *testing.T, password string) string {
	t.Helper()
	u := models.User{Password: password}
	if err := u.HashPassword(); err != nil {
		t.Fatalf("hash: %v", err)
	}
	return u.PasswordHash
}

func postLogin(r *gin.Engine, email, password string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginIssuesProviderToken(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = .*`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(11, 3, "dispatch@metro.example", "Dee", hashed(t, "s3cret-pass"), "dispatcher", true))

	r := gin.New()
	r.POST("/login", Login(db, testSecret, time.Hour))
	w := postLogin(r, "Dispatch@Metro.example", "s3cret-pass")
	if w.Code != 200 {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := utils.ValidateToken(body.Token, testSecret)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if claims.UserID != 11 || claims.ProviderID != 3 || claims.Role != "dispatcher" {
		t.Fatalf("claims = %+v", claims)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	cases := []struct {
		name   string
		active bool
		pass   string
	}{
		{"wrong password", true, "guess"},
		{"inactive user", false, "s3cret-pass"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery(`SELECT \* FROM "users"`).
				WillReturnRows(sqlmock.NewRows(userColumns).
					AddRow(11, 3, "dispatch@metro.example", "Dee", hashed(t, "s3cret-pass"), "dispatcher", tc.active))

			r := gin.New()
			r.POST("/login", Login(db, testSecret, time.Hour))
			if w := postLogin(r, "dispatch@metro.example", tc.pass); w.Code != 401 {
				t.Fatalf("status = %d", w.Code)
			}
		})
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(sqlmock.NewRows(userColumns))

	r := gin.New()
	r.POST("/login", Login(db, testSecret, time.Hour))
	if w := postLogin(r, "nobody@metro.example", "whatever"); w.Code != 401 {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	s := newTestServer()
	w := s.doAs(t, models.UserRoleScheduler, http.MethodPost, "/api/v1/users", map[string]any{
		"email": "new@metro.example", "password": "long-enough", "name": "New", "role": "scheduler",
	})
	if w.Code != 401 {
		t.Fatalf("status = %d", w.Code)
	}
}
