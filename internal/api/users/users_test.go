package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/inevitable-science/article-registry/internal/auth"
	"github.com/inevitable-science/article-registry/internal/db/models"
	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/middleware"
	"github.com/inevitable-science/article-registry/internal/notify"
	"github.com/inevitable-science/article-registry/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret    = "users-test-secret-that-is-32chars!"
	testBootstrap = "bootstrap-override"
	testPassword  = "hunter2-but-longer"
	goodMFACode   = "123456"
)

// stubMFA accepts exactly goodMFACode, sidestepping clock-sensitive TOTP math
type stubMFA struct{}

func (stubMFA) VerifyCode(mfaKey, code string) bool {
	return mfaKey != "" && code == goodMFACode
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var userCols = []string{
	"user_id", "password_hash", "mfa_key", "is_top_level_admin", "username",
	"profile_picture", "social_x", "social_linkedin", "social_website",
	"attachments", "created_at", "updated_at",
}

var orgCols = []string{
	"organisation_id", "organisation_name", "logo", "description",
	"website", "social_x", "discord", "created_at", "updated_at",
}

var orgWithMemberCols = []string{
	"organisation_id", "organisation_name", "logo", "description", "website",
	"social_x", "discord", "created_at", "updated_at",
	"user_id", "is_admin", "can_edit", "can_delete", "can_create",
}

var profileCols = []string{"user_id", "username", "profile_picture"}

var articleCols = []string{
	"article_id", "organisation_id", "title", "hidden", "deleted",
	"show_on_main_site", "date_written", "author", "editors", "keywords",
	"tags", "attachments", "landing_image", "body",
}

func userRowFixture(t *testing.T, tla bool) *sqlmock.Rows {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return sqlmock.NewRows(userCols).AddRow(
		"0xbeef01", hash, "JBSWY3DPEHPK3PXP", tla, "writer",
		"old.png", "@writer", "", "", "{}", time.Now(), time.Now(),
	)
}

func articleRowFixture(title string) *sqlmock.Rows {
	return sqlmock.NewRows(articleCols).AddRow(
		"0x1a2b3c4d5e", "0xa1b2c3d4", title, false, false, true,
		time.Now(), "0xbeef01", "{}", "{}", "{}", "{}", "", "text",
	)
}

func tlaUser() *models.User {
	return &models.User{UserID: "0xadadad", Username: "rooter", IsTopLevelAdmin: true}
}

func memberUser() *models.User {
	return &models.User{
		UserID:         "0xbeef01",
		Username:       "writer",
		ProfilePicture: "old.png",
		Socials:        models.Socials{X: "@writer"},
	}
}

// ---------------------------------------------------------------------------
// Router helper
// ---------------------------------------------------------------------------

// newRouter wires the user handlers onto a sqlmock-backed stack. A nil caller
// leaves the session context empty, for the login and bootstrap paths.
func newRouter(t *testing.T, caller *models.User) (sqlmock.Sqlmock, *gin.Engine, *auth.TokenService) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganisationRepository(db)
	articleRepo := repositories.NewArticleRepository(sqlx.NewDb(db, "postgres"))
	tokens := auth.NewTokenService(testSecret, 0)
	h := NewHandlers(userRepo, orgRepo, articleRepo,
		services.NewAccessService(orgRepo), tokens, stubMFA{},
		notify.NewNotifier("", 0, nil), testBootstrap)

	r := gin.New()
	if caller != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.UserKey, caller)
			c.Set(middleware.UserIDKey, caller.UserID)
		})
	}
	r.POST("/user/login", h.Login)
	r.POST("/user/fetch", h.Fetch)
	r.POST("/user/create", h.Create)
	r.POST("/user/edit", h.Edit)
	r.GET("/user/all", h.All)
	return mock, r, tokens
}

func postJSON(r *gin.Engine, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v: %s", err, w.Body.String())
	}
	return resp
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func loginBody(password, code string) map[string]string {
	return map[string]string{"userId": "0xBEEF01", "password": password, "mfaCode": code}
}

func TestLogin_Success(t *testing.T) {
	mock, r, tokens := newRouter(t, nil)

	mock.ExpectQuery("SELECT.*FROM users WHERE user_id").
		WithArgs("0xbeef01").
		WillReturnRows(userRowFixture(t, false))

	w := postJSON(r, "/user/login", loginBody(testPassword, goodMFACode), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	key, _ := getJSON(t, w)["key"].(string)
	if key == "" {
		t.Fatal("response missing session key")
	}
	userID, err := tokens.Verify(key)
	if err != nil || userID != "0xbeef01" {
		t.Errorf("Verify(key) = %q, %v", userID, err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	mock, r, _ := newRouter(t, nil)

	mock.ExpectQuery("SELECT.*FROM users WHERE user_id").
		WillReturnRows(sqlmock.NewRows(userCols))

	w := postJSON(r, "/user/login", loginBody(testPassword, goodMFACode), nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	mock, r, _ := newRouter(t, nil)

	mock.ExpectQuery("SELECT.*FROM users WHERE user_id").
		WillReturnRows(userRowFixture(t, false))

	w := postJSON(r, "/user/login", loginBody("not-the-password", goodMFACode), nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLogin_WrongMFACode(t *testing.T) {
	mock, r, _ := newRouter(t, nil)

	mock.ExpectQuery("SELECT.*FROM users WHERE user_id").
		WillReturnRows(userRowFixture(t, false))

	w := postJSON(r, "/user/login", loginBody(testPassword, "654321"), nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLogin_MalformedMFACode(t *testing.T) {
	_, r, _ := newRouter(t, nil)

	w := postJSON(r, "/user/login", loginBody(testPassword, "12345"), nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Fetch
// ---------------------------------------------------------------------------

func TestFetchUser_TopLevelAdmin(t *testing.T) {
	mock, r, _ := newRouter(t, tlaUser())

	mock.ExpectQuery("SELECT.*FROM organisations ORDER BY").
		WillReturnRows(sqlmock.NewRows(orgCols).AddRow(
			"0xa1b2c3d4", "Inevitable Science", "", "", "", "", "", time.Now(), time.Now()))
	mock.ExpectQuery("SELECT.*FROM articles.*WHERE NOT deleted").
		WillReturnRows(articleRowFixture("Everything"))
	mock.ExpectQuery("SELECT.*FROM articles.*WHERE author").
		WillReturnRows(sqlmock.NewRows(articleCols))
	mock.ExpectQuery("SELECT.*FROM articles.*ANY\\(editors\\)").
		WillReturnRows(sqlmock.NewRows(articleCols))

	w := postJSON(r, "/user/fetch", map[string]string{}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)

	orgs, _ := resp["organisations"].([]interface{})
	if len(orgs) != 1 {
		t.Fatalf("organisations = %v", resp["organisations"])
	}
	perms, _ := orgs[0].(map[string]interface{})["userPermissions"].(map[string]interface{})
	if perms["isAdmin"] != true || perms["canDelete"] != true {
		t.Errorf("admin view should carry full flags, got %v", perms)
	}

	editable, _ := resp["editableArticles"].([]interface{})
	if len(editable) != 1 {
		t.Errorf("editableArticles = %v", resp["editableArticles"])
	}
}

func TestFetchUser_MemberEditableScopedToEditOrgs(t *testing.T) {
	mock, r, _ := newRouter(t, memberUser())

	// Two memberships; only the one with canEdit contributes editable articles.
	mock.ExpectQuery("SELECT.*FROM organisations o.*JOIN organisation_members").
		WillReturnRows(sqlmock.NewRows(orgWithMemberCols).
			AddRow("0xa1b2c3d4", "Lab A", "", "", "", "", "", time.Now(), time.Now(),
				"0xbeef01", false, true, false, false).
			AddRow("0xd0d0d0d0", "Lab B", "", "", "", "", "", time.Now(), time.Now(),
				"0xbeef01", false, false, false, true))
	mock.ExpectQuery("SELECT.*FROM articles.*WHERE organisation_id").
		WithArgs("0xa1b2c3d4").
		WillReturnRows(articleRowFixture("Lab A Paper"))
	mock.ExpectQuery("SELECT.*FROM articles.*WHERE author").
		WillReturnRows(articleRowFixture("My Own"))
	mock.ExpectQuery("SELECT.*FROM articles.*ANY\\(editors\\)").
		WillReturnRows(sqlmock.NewRows(articleCols))

	w := postJSON(r, "/user/fetch", map[string]string{}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	editable, _ := resp["editableArticles"].([]interface{})
	if len(editable) != 1 {
		t.Errorf("editableArticles = %v, want only Lab A's", resp["editableArticles"])
	}
	written, _ := resp["writtenArticles"].([]interface{})
	if len(written) != 1 {
		t.Errorf("writtenArticles = %v", resp["writtenArticles"])
	}
}

// ---------------------------------------------------------------------------
// All
// ---------------------------------------------------------------------------

func TestAllUsers_ForbiddenForNonAdmin(t *testing.T) {
	_, r, _ := newRouter(t, memberUser())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/user/all", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestAllUsers_Success(t *testing.T) {
	mock, r, _ := newRouter(t, tlaUser())

	mock.ExpectQuery("SELECT user_id, username, profile_picture FROM users ORDER BY").
		WillReturnRows(sqlmock.NewRows(profileCols).
			AddRow("0xbeef01", "writer", "").
			AddRow("0xcafe02", "reader", ""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/user/all", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	users, _ := getJSON(t, w)["users"].([]interface{})
	if len(users) != 2 {
		t.Errorf("users = %v, want 2 entries", users)
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func createBody(overwrite string) map[string]interface{} {
	return map[string]interface{}{
		"overwritePassword": overwrite,
		"user": map[string]interface{}{
			"username":        "fresh",
			"password":        "a-decent-password",
			"isTopLevelAdmin": false,
			"organisations": []map[string]interface{}{
				{"organisationId": "0xa1b2c3d4", "canEdit": true},
				{"organisationId": "0xA1B2C3D4", "canCreate": true}, // duplicate, collapsed
				{"organisationId": "0xffffffff", "canEdit": true},   // unknown, skipped
				{"organisationId": "0xd0d0d0d0"},                    // all-false, skipped
			},
		},
	}
}

func TestCreateUser_BootstrapPassword(t *testing.T) {
	mock, r, _ := newRouter(t, nil)

	mock.ExpectQuery("SELECT EXISTS.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))
	mock.ExpectQuery("SELECT EXISTS.*FROM organisations").
		WithArgs("0xa1b2c3d4").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO organisation_members").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT EXISTS.*FROM organisations").
		WithArgs("0xffffffff").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := postJSON(r, "/user/create", createBody(testBootstrap), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	id, _ := resp["userId"].(string)
	if len(id) != 8 || id[:2] != "0x" {
		t.Errorf("userId = %q, want 0x + 6 hex chars", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateUser_NoCredential(t *testing.T) {
	_, r, _ := newRouter(t, nil)

	w := postJSON(r, "/user/create", createBody("wrong-override"), nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCreateUser_ForbiddenForNonAdminCaller(t *testing.T) {
	mock, r, tokens := newRouter(t, nil)

	token, err := tokens.Issue("0xbeef01")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mock.ExpectQuery("SELECT.*FROM users WHERE user_id").
		WithArgs("0xbeef01").
		WillReturnRows(userRowFixture(t, false))

	w := postJSON(r, "/user/create", createBody(""),
		map[string]string{"Authorization": "Bearer " + token})

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestCreateUser_AdminCallerWithToken(t *testing.T) {
	mock, r, tokens := newRouter(t, nil)

	token, err := tokens.Issue("0xbeef01")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mock.ExpectQuery("SELECT.*FROM users WHERE user_id").
		WillReturnRows(userRowFixture(t, true))
	mock.ExpectQuery("SELECT EXISTS.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	body := createBody("")
	body["user"].(map[string]interface{})["organisations"] = []map[string]interface{}{}
	w := postJSON(r, "/user/create", body,
		map[string]string{"Authorization": "Bearer " + token})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestCreateUser_MissingPassword(t *testing.T) {
	_, r, _ := newRouter(t, nil)

	w := postJSON(r, "/user/create", map[string]interface{}{
		"overwritePassword": testBootstrap,
		"user":              map[string]interface{}{"username": "fresh"},
	}, nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Edit
// ---------------------------------------------------------------------------

func TestEditUser_MergesOntoStoredProfile(t *testing.T) {
	mock, r, _ := newRouter(t, memberUser())

	// Only the username changes; picture and socials keep their stored values.
	mock.ExpectExec("UPDATE users").
		WithArgs("0xbeef01", "newname", "old.png", "@writer", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(r, "/user/edit", map[string]string{"username": "newname"}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if resp := getJSON(t, w); resp["message"] != "User Changes Saved" {
		t.Errorf("message = %v", resp["message"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEditUser_UsernameTooShort(t *testing.T) {
	_, r, _ := newRouter(t, memberUser())

	w := postJSON(r, "/user/edit", map[string]string{"username": "abc"}, nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
