package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/studiva/studiva/internal/attempt"
	auth "github.com/studiva/studiva/internal/auth/middleware"
	"github.com/studiva/studiva/internal/db"
	"github.com/studiva/studiva/internal/proctor"
	"github.com/studiva/studiva/internal/quiz"
	"github.com/studiva/studiva/internal/rbac"
)

type testEnv struct {
	router  http.Handler
	db      *sql.DB
	authSvc *auth.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	store := quiz.NewSQLStore(database, "sqlite")
	events := proctor.NewEventRepo(database)
	mgr := attempt.NewManager(store, store, events)
	authSvc := auth.NewAuthService("test-secret", time.Hour)
	checker := rbac.NewChecker(nil)

	r := chi.NewRouter()
	r.Post("/auth/login", auth.LoginHandler(authSvc, database))
	r.Group(func(r chi.Router) {
		r.Use(auth.JWTMiddleware(authSvc))

		r.With(rbac.Require("quiz:view")).Get("/quizzes/{quizID}", GetQuizHandler(store, checker))
		r.With(rbac.Require("quiz:view")).Get("/classes/{classID}/quizzes", ListClassQuizzesHandler(store, checker))
		r.With(rbac.Require("quiz:create")).Post("/quizzes", CreateQuizHandler(store))
		r.With(rbac.Require("quiz:update")).Put("/quizzes/{quizID}/settings", UpdateQuizSettingsHandler(store, nil))

		r.With(rbac.Require("attempt:start")).Post("/attempts", StartAttemptHandler(mgr))
		r.With(rbac.Require("attempt:start")).Get("/attempts/{sessionID}", GetAttemptHandler(mgr))
		r.With(rbac.Require("attempt:answer")).Post("/attempts/{sessionID}/answers", RecordAnswerHandler(mgr))
		r.With(rbac.Require("attempt:answer")).Post("/attempts/{sessionID}/events", RecordEventHandler(mgr))
		r.With(rbac.Require("attempt:submit")).Post("/attempts/{sessionID}/submit", SubmitAttemptHandler(mgr))

		r.With(rbac.Require("attempt:submit")).Post("/results/submit", SubmitResultHandler(store))
		r.With(rbac.RequireAny("result:view-own", "result:view-all")).Get("/results/history", ResultHistoryHandler(store, checker))
		r.With(rbac.RequireAny("result:view-own", "result:view-all")).Get("/results/{resultID}", GetResultHandler(store, checker))
		r.With(rbac.RequireAny("result:view-own", "result:view-all")).Get("/results/{resultID}/answers", ListAnswersHandler(store, checker))

		r.With(rbac.Require("result:grade")).Get("/results/{resultID}/essay-submissions", ListEssaySubmissionsHandler(store))
		r.With(rbac.Require("result:grade")).Put("/results/essay-submissions/{submissionID}/grade", GradeEssayHandler(store))
		r.With(rbac.Require("result:grade")).Post("/results/{resultID}/finalize-grading", FinalizeGradingHandler(store))

		r.With(rbac.Require("weights:view")).Get("/classes/{classID}/quiz-weights", GetWeightsHandler(store))
		r.With(rbac.Require("weights:set")).Post("/classes/{classID}/quiz-weights", SetWeightsHandler(store))
		r.With(rbac.Require("weights:view")).Get("/classes/{classID}/averages", ClassAveragesHandler(store))

		r.With(rbac.RequireAny("progress:view-own", "progress:view-all")).Get("/progress/{userID}", ProgressHandler(store, checker))

		r.With(rbac.Require("users:bulk_upsert")).Post("/users/bulk", BulkUpsertUsersHandler(database))
		r.With(rbac.Require("users:list")).Get("/users", ListUsersHandler(database))
		r.With(rbac.Require("user:change_password")).Post("/users/change-password", ChangePasswordHandler(database))
	})

	return &testEnv{router: r, db: database, authSvc: authSvc}
}

func (e *testEnv) addUser(t *testing.T, id, username, password, role string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	_, err = e.db.Exec(
		`INSERT INTO users (id,username,password_hash,role,class_id,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, username, string(hash), role, "class-1", time.Now().Unix())
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func (e *testEnv) token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := e.authSvc.IssueJWT(sub, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func createQuizBody() map[string]any {
	return map[string]any{
		"class_id":         "class-1",
		"topic":            "Fractions",
		"type":             "mcq",
		"duration_minutes": 30,
		"max_attempts":     2,
		"active":           true,
		"questions": []map[string]any{
			{"text": "1/2 + 1/2 = ?", "options": []string{"1", "2"}, "answer": "1"},
			{"text": "1/4 + 1/4 = ?", "options": []string{"1/2", "1"}, "answer": "1/2"},
		},
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "s-1", "alice", "pw123456", "student")

	w := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "pw123456"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[map[string]string](t, w)
	if resp["access_token"] == "" || resp["role"] != "student" {
		t.Fatalf("login response = %v", resp)
	}

	w = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password = %d, want 401", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/results/history", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/results/history", "garbage-token", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", w.Code)
	}
}

func TestRoleSeparation(t *testing.T) {
	env := newTestEnv(t)
	student := env.token(t, "s-1", "student")
	teacher := env.token(t, "t-1", "teacher")

	if w := env.do(t, http.MethodPost, "/quizzes", student, createQuizBody()); w.Code != http.StatusForbidden {
		t.Fatalf("student create quiz = %d, want 403", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/attempts", teacher, map[string]string{"quiz_id": "x"}); w.Code != http.StatusForbidden {
		t.Fatalf("teacher start attempt = %d, want 403", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/classes/class-1/quiz-weights", student,
		map[string]int{"mcq_weight": 50}); w.Code != http.StatusForbidden {
		t.Fatalf("student set weights = %d, want 403", w.Code)
	}
}

func TestQuizAttemptFlow(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.token(t, "t-1", "teacher")
	student := env.token(t, "s-1", "student")

	w := env.do(t, http.MethodPost, "/quizzes", teacher, createQuizBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create quiz = %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody[quiz.Quiz](t, w)
	if len(created.Questions) != 2 {
		t.Fatalf("created quiz has %d questions", len(created.Questions))
	}

	// Students see the sanitized view.
	w = env.do(t, http.MethodGet, "/quizzes/"+created.ID, student, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get quiz = %d: %s", w.Code, w.Body.String())
	}
	got := decodeBody[quiz.Quiz](t, w)
	if got.Questions[0].Answer != "" {
		t.Fatal("answer key leaked to student")
	}
	// Teachers see the full definition.
	w = env.do(t, http.MethodGet, "/quizzes/"+created.ID, teacher, nil)
	if decodeBody[quiz.Quiz](t, w).Questions[0].Answer == "" {
		t.Fatal("answer key missing for teacher")
	}

	w = env.do(t, http.MethodPost, "/attempts", student, map[string]string{"quiz_id": created.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("start attempt = %d: %s", w.Code, w.Body.String())
	}
	started := decodeBody[startAttemptResp](t, w)
	snap := started.Session
	if snap.State != attempt.StateActive {
		t.Fatalf("state = %s, want active", snap.State)
	}
	if len(started.Quiz.Questions) != 2 || started.Quiz.Questions[0].Answer != "" {
		t.Fatalf("start response quiz = %+v, want 2 sanitized questions", started.Quiz.Questions)
	}

	q1, q2 := created.Questions[0].ID, created.Questions[1].ID
	for qid, resp := range map[string]string{q1: "1", q2: "1"} {
		w = env.do(t, http.MethodPost, "/attempts/"+snap.ID+"/answers", student,
			map[string]string{"question_id": qid, "response": resp})
		if w.Code != http.StatusOK {
			t.Fatalf("record answer = %d: %s", w.Code, w.Body.String())
		}
	}
	w = env.do(t, http.MethodPost, "/attempts/"+snap.ID+"/events", student,
		map[string]string{"event_type": "tab_switch", "details": "blur"})
	if w.Code != http.StatusOK {
		t.Fatalf("record event = %d: %s", w.Code, w.Body.String())
	}

	// Another student cannot touch the session.
	intruder := env.token(t, "s-2", "student")
	if w = env.do(t, http.MethodPost, "/attempts/"+snap.ID+"/submit", intruder, nil); w.Code != http.StatusNotFound {
		t.Fatalf("cross-user submit = %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodPost, "/attempts/"+snap.ID+"/submit", student, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit = %d: %s", w.Code, w.Body.String())
	}
	res := decodeBody[quiz.Result](t, w)
	if res.Score != 1 || res.Total != 2 || res.Status != quiz.StatusCompleted {
		t.Fatalf("result = %s %d/%d, want completed 1/2", res.Status, res.Score, res.Total)
	}

	// Double submit hits a dead session.
	if w = env.do(t, http.MethodPost, "/attempts/"+snap.ID+"/submit", student, nil); w.Code != http.StatusNotFound {
		t.Fatalf("resubmit = %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/results/history", student, nil)
	history := decodeBody[[]quiz.Result](t, w)
	if len(history) != 1 || history[0].ID != res.ID {
		t.Fatalf("history = %+v", history)
	}

	// Results are private to their owner.
	if w = env.do(t, http.MethodGet, "/results/"+res.ID, intruder, nil); w.Code != http.StatusNotFound {
		t.Fatalf("cross-user result = %d, want 404", w.Code)
	}
	if w = env.do(t, http.MethodGet, "/results/"+res.ID, teacher, nil); w.Code != http.StatusOK {
		t.Fatalf("teacher result view = %d, want 200", w.Code)
	}
}

func TestWeightsAndAverages(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.token(t, "t-1", "teacher")
	student := env.token(t, "s-1", "student")

	w := env.do(t, http.MethodGet, "/classes/class-1/averages", teacher, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("averages without weights = %d, want 422", w.Code)
	}

	w = env.do(t, http.MethodPost, "/classes/class-1/quiz-weights", teacher,
		map[string]int{"mcq_weight": 100, "true_false_weight": 0, "essay_weight": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("set weights = %d: %s", w.Code, w.Body.String())
	}

	cw := env.do(t, http.MethodPost, "/quizzes", teacher, createQuizBody())
	created := decodeBody[quiz.Quiz](t, cw)
	sw := env.do(t, http.MethodPost, "/attempts", student, map[string]string{"quiz_id": created.ID})
	snap := decodeBody[startAttemptResp](t, sw).Session
	env.do(t, http.MethodPost, "/attempts/"+snap.ID+"/answers", student,
		map[string]string{"question_id": created.Questions[0].ID, "response": "1"})
	if w = env.do(t, http.MethodPost, "/attempts/"+snap.ID+"/submit", student, nil); w.Code != http.StatusOK {
		t.Fatalf("submit = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/classes/class-1/averages", teacher, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("averages = %d: %s", w.Code, w.Body.String())
	}
	avgs := decodeBody[[]map[string]any](t, w)
	if len(avgs) != 1 {
		t.Fatalf("got %d rows, want 1", len(avgs))
	}
	// One mcq result at 1/2 with mcq weight 100 blends to 50.
	if got := avgs[0]["weighted_average"].(float64); got != 50 {
		t.Fatalf("weighted_average = %v, want 50", got)
	}
}

func TestUsersEndpoints(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "a-1", "admin")
	teacher := env.token(t, "t-1", "teacher")

	w := env.do(t, http.MethodPost, "/users/bulk", admin, map[string]any{
		"users": []map[string]string{
			{"username": "alice", "password": "pw123456", "role": "student", "class_id": "class-1"},
			{"username": "bob", "password": "pw123456", "role": "student", "class_id": "class-1"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("bulk = %d: %s", w.Code, w.Body.String())
	}
	counts := decodeBody[map[string]int](t, w)
	if counts["created"] != 2 || counts["updated"] != 0 {
		t.Fatalf("counts = %v", counts)
	}

	// Re-run upserts instead of duplicating.
	w = env.do(t, http.MethodPost, "/users/bulk", admin, map[string]any{
		"users": []map[string]string{
			{"username": "alice", "password": "newpw123", "role": "student", "class_id": "class-1"},
		},
	})
	counts = decodeBody[map[string]int](t, w)
	if counts["created"] != 0 || counts["updated"] != 1 {
		t.Fatalf("counts = %v", counts)
	}

	w = env.do(t, http.MethodGet, "/users?class_id=class-1", teacher, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d: %s", w.Code, w.Body.String())
	}
	users := decodeBody[[]map[string]any](t, w)
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}

	// Updated password works through login.
	w = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "newpw123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login after upsert = %d: %s", w.Code, w.Body.String())
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "s-1", "alice", "pw123456", "student")
	student := env.token(t, "s-1", "student")

	w := env.do(t, http.MethodPost, "/users/change-password", student,
		map[string]string{"old_password": "wrong", "new_password": "brandnew1"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password = %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodPost, "/users/change-password", student,
		map[string]string{"old_password": "pw123456", "new_password": "brandnew1"})
	if w.Code != http.StatusOK {
		t.Fatalf("change password = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "brandnew1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login with new password = %d", w.Code)
	}
}
