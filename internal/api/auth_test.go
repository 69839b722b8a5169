package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pairpoint/server/internal/config"
	"github.com/pairpoint/server/internal/database"
	"github.com/pairpoint/server/internal/testutil"
	"github.com/pairpoint/server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, db database.LedgerRepository) (*App, *http.ServeMux) {
	t.Helper()

	cfg, err := config.NewConfig(
		"localhost:8000",
		"host=localhost",
		"dGVzdC1zaWduaW5nLWtleQ==",
		[]string{"http://localhost:3000"},
		config.DefaultBrokerConfig(),
	)
	require.NoError(t, err)

	mux := http.NewServeMux()
	return NewApp(mux, testutil.TestLogger(t), nil, db, cfg), mux
}

func sessionCookie(t *testing.T, s *App, userId int) *http.Cookie {
	t.Helper()

	token, err := s.createJwtForSession(types.User{Id: userId}, time.Hour)
	require.NoError(t, err)
	return createJwtCookie(token, time.Hour)
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("rejects a request without a cookie", func(t *testing.T) {
		s, _ := newTestApp(t, &database.MockLedgerRepository{})

		var called bool
		h := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called, "handler must not run without a token")
	})

	t.Run("rejects a token signed with the wrong key", func(t *testing.T) {
		s, _ := newTestApp(t, &database.MockLedgerRepository{})
		other, _ := newTestApp(t, &database.MockLedgerRepository{})
		other.signingKey = []byte("some-other-key")

		h := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {})

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(sessionCookie(t, other, 1))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("admits a valid token and exposes the user id", func(t *testing.T) {
		s, _ := newTestApp(t, &database.MockLedgerRepository{})

		var gotId int
		h := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			id, ok := UserId(r.Context())
			require.True(t, ok)
			gotId = id
		})

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(sessionCookie(t, s, 42))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 42, gotId)
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	})
}

func TestCreateAccount(t *testing.T) {
	t.Run("creates an account", func(t *testing.T) {
		db := &database.MockLedgerRepository{}
		db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.DisplayName == "ana" &&
				p.EmailAddress == "ana@example.com" &&
				verifyPassword(p.PasswordHash, "hunter22")
		})).Return(database.User{Id: 1, DisplayName: "ana", EmailAddress: "ana@example.com"}, nil)

		_, mux := newTestApp(t, db)

		body := `{"email":"ana@example.com","display_name":"ana","password":"hunter22"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)

		var u types.User
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &u))
		assert.Equal(t, 1, u.Id)
		assert.Equal(t, "ana", u.DisplayName)
		db.AssertExpectations(t)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, mux := newTestApp(t, &database.MockLedgerRepository{})

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		db := &database.MockLedgerRepository{}
		_, mux := newTestApp(t, db)

		body := `{"email":"ana@example.com","password":"hunter22"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		db.AssertNotCalled(t, "CreateAccount", mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	hash, err := hashPassword("hunter22")
	require.NoError(t, err)

	t.Run("issues a session cookie on success", func(t *testing.T) {
		db := &database.MockLedgerRepository{}
		db.On("GetAccountByEmail", "ana@example.com").Return(database.User{
			Id:           1,
			DisplayName:  "ana",
			EmailAddress: "ana@example.com",
			PasswordHash: hash,
		}, nil)

		s, mux := newTestApp(t, db)

		body := `{"email":"ana@example.com","password":"hunter22"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, tokenCookieKey, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)

		userId, err := s.extractUserIdFromToken(cookies[0].Value)
		require.NoError(t, err)
		assert.Equal(t, 1, userId, "cookie token must round-trip to the account id")
	})

	t.Run("unknown account", func(t *testing.T) {
		db := &database.MockLedgerRepository{}
		db.On("GetAccountByEmail", "ghost@example.com").Return(database.User{}, sql.ErrNoRows)

		_, mux := newTestApp(t, db)

		body := `{"email":"ghost@example.com","password":"hunter22"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		db := &database.MockLedgerRepository{}
		db.On("GetAccountByEmail", "ana@example.com").Return(database.User{
			Id:           1,
			EmailAddress: "ana@example.com",
			PasswordHash: hash,
		}, nil)

		_, mux := newTestApp(t, db)

		body := `{"email":"ana@example.com","password":"wrong"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, rr.Result().Cookies(), "no cookie on failed login")
	})
}

func TestSession(t *testing.T) {
	t.Run("returns the authenticated account", func(t *testing.T) {
		db := &database.MockLedgerRepository{}
		db.On("GetAccountById", 42).Return(database.User{
			Id:           42,
			DisplayName:  "ana",
			EmailAddress: "ana@example.com",
		}, nil)

		s, mux := newTestApp(t, db)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(sessionCookie(t, s, 42))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var u types.User
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &u))
		assert.Equal(t, 42, u.Id)
		assert.Equal(t, "ana", u.DisplayName)
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("account vanished after token issue", func(t *testing.T) {
		db := &database.MockLedgerRepository{}
		db.On("GetAccountById", 42).Return(database.User{}, sql.ErrNoRows)

		s, mux := newTestApp(t, db)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(sessionCookie(t, s, 42))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestLogout(t *testing.T) {
	db := &database.MockLedgerRepository{}
	s, mux := newTestApp(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	req.AddCookie(sessionCookie(t, s, 1))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value, "logout blanks the token cookie")
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, verifyPassword(hash, "hunter22"))
	assert.False(t, verifyPassword(hash, "hunter23"))
}
