package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"crm-auth-service/internal/auth"
	"crm-auth-service/internal/auth/handler"
	"crm-auth-service/internal/otp"
	"crm-auth-service/internal/security"
	"crm-auth-service/internal/server"
	"crm-auth-service/internal/session"
	userdomain "crm-auth-service/internal/user/domain"
)

type stubUserRepo struct {
	users map[string]*userdomain.User
}

func (r *stubUserRepo) GetByUsername(ctx context.Context, username string) (*userdomain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *stubUserRepo) UpdateAttributes(ctx context.Context, id, department, position string) error {
	if u, ok := r.users[id]; ok {
		u.Department = department
		u.Position = position
	}
	return nil
}

func testRouter(t *testing.T, mode auth.Mode) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher := security.NewHasher(4)
	hash, err := hasher.Hash([]byte("secret"))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := &stubUserRepo{users: map[string]*userdomain.User{
		"u1": {
			ID:           "u1",
			Username:     "jsmith",
			PasswordHash: hash,
			Phone:        "01012345678",
			Department:   "sales",
			Position:     "manager",
			Source:       userdomain.SourceLocal,
		},
	}}

	dev := otp.NewDevStore()
	issuer := otp.NewIssuer(otp.NewMemoryStore(), nil, 5*time.Minute, 5, dev)
	sessions := session.NewManager(time.Hour, 10*time.Minute)
	svc := auth.NewService(mode, repo, auth.NewLocalVerifier(repo, hasher), nil, issuer, sessions, dev, nil, nil)

	tokens := security.NewSessionTokenProvider([]byte("test-secret"), "crm-auth", time.Hour)
	h := handler.NewHTTPHandler(svc, tokens, false)
	tracer := tracenoop.NewTracerProvider().Tracer("test")
	meter := noop.NewMeterProvider().Meter("test")
	return server.NewRouter(h, tracer, meter, true)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

func TestHealthz(t *testing.T) {
	r := testRouter(t, auth.ModeLocal)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestLogin_LocalHTTPFlow(t *testing.T) {
	r := testRouter(t, auth.ModeLocal)

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "jsmith", "password": "secret",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["username"] != "jsmith" || body["method"] != "local" {
		t.Errorf("body = %v", body)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != handler.SessionCookie || cookies[0].Value == "" {
		t.Fatalf("session cookie missing: %v", cookies)
	}

	me := doJSON(t, r, http.MethodGet, "/auth/me", nil, cookies)
	if me.Code != http.StatusOK {
		t.Fatalf("me status = %d", me.Code)
	}
	meBody := decodeBody(t, me)
	if meBody["username"] != "jsmith" || meBody["department"] != "sales" {
		t.Errorf("me body = %v", meBody)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	r := testRouter(t, auth.ModeLocal)

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "jsmith", "password": "wrong",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if decodeBody(t, w)["error"] != "invalid username or password" {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	r := testRouter(t, auth.ModeLocal)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestOTP_HTTPFlow(t *testing.T) {
	r := testRouter(t, auth.ModeOTP)

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "jsmith", "password": "secret",
	}, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["otp_required"] != true {
		t.Fatalf("body = %v", body)
	}
	if body["masked_phone"] != "0101234****" {
		t.Errorf("masked_phone = %v, want 0101234****", body["masked_phone"])
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("pending session cookie missing")
	}

	// Pending session is not authenticated yet.
	if me := doJSON(t, r, http.MethodGet, "/auth/me", nil, cookies); me.Code != http.StatusUnauthorized {
		t.Fatalf("me before confirmation = %d, want 401", me.Code)
	}

	devW := doJSON(t, r, http.MethodGet, "/dev/otp", nil, cookies)
	if devW.Code != http.StatusOK {
		t.Fatalf("dev otp status = %d", devW.Code)
	}
	code, _ := decodeBody(t, devW)["code"].(string)
	if code == "" {
		t.Fatal("dev otp returned no code")
	}

	conf := doJSON(t, r, http.MethodPost, "/auth/verify-otp", map[string]string{"code": code}, cookies)
	if conf.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", conf.Code, conf.Body.String())
	}
	authCookies := conf.Result().Cookies()
	if len(authCookies) == 0 {
		t.Fatal("rotated cookie missing after confirmation")
	}
	if me := doJSON(t, r, http.MethodGet, "/auth/me", nil, authCookies); me.Code != http.StatusOK {
		t.Fatalf("me after confirmation = %d", me.Code)
	}
}

func TestVerifyOTP_WithoutSession(t *testing.T) {
	r := testRouter(t, auth.ModeOTP)

	w := doJSON(t, r, http.MethodPost, "/auth/verify-otp", map[string]string{"code": "123456"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	r := testRouter(t, auth.ModeOTP)

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "jsmith", "password": "secret",
	}, nil)
	cookies := w.Result().Cookies()

	conf := doJSON(t, r, http.MethodPost, "/auth/verify-otp", map[string]string{"code": "000000"}, cookies)
	if conf.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", conf.Code)
	}
	if decodeBody(t, conf)["error"] != "incorrect verification code" {
		t.Errorf("body = %s", conf.Body.String())
	}
}

func TestResendOTP_HTTP(t *testing.T) {
	r := testRouter(t, auth.ModeOTP)

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "jsmith", "password": "secret",
	}, nil)
	cookies := w.Result().Cookies()

	resend := doJSON(t, r, http.MethodPost, "/auth/resend-otp", nil, cookies)
	if resend.Code != http.StatusAccepted {
		t.Fatalf("resend status = %d, body %s", resend.Code, resend.Body.String())
	}

	devW := doJSON(t, r, http.MethodGet, "/dev/otp", nil, cookies)
	code, _ := decodeBody(t, devW)["code"].(string)
	conf := doJSON(t, r, http.MethodPost, "/auth/verify-otp", map[string]string{"code": code}, cookies)
	if conf.Code != http.StatusOK {
		t.Fatalf("verify after resend = %d, body %s", conf.Code, conf.Body.String())
	}
}

func TestLogout_HTTP(t *testing.T) {
	r := testRouter(t, auth.ModeLocal)

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "jsmith", "password": "secret",
	}, nil)
	cookies := w.Result().Cookies()

	out := doJSON(t, r, http.MethodPost, "/auth/logout", nil, cookies)
	if out.Code != http.StatusOK {
		t.Fatalf("logout status = %d", out.Code)
	}
	if me := doJSON(t, r, http.MethodGet, "/auth/me", nil, cookies); me.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", me.Code)
	}
	// Logout without a session still succeeds.
	if out := doJSON(t, r, http.MethodPost, "/auth/logout", nil, nil); out.Code != http.StatusOK {
		t.Fatalf("cookieless logout status = %d", out.Code)
	}
}

func TestMe_WithoutSession(t *testing.T) {
	r := testRouter(t, auth.ModeLocal)
	if w := doJSON(t, r, http.MethodGet, "/auth/me", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestMe_ForgedCookieRejected(t *testing.T) {
	r := testRouter(t, auth.ModeLocal)

	other := security.NewSessionTokenProvider([]byte("other-secret"), "crm-auth", time.Hour)
	forged, _, err := other.Issue("sess-1", "u1", "local")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w := doJSON(t, r, http.MethodGet, "/auth/me", nil, []*http.Cookie{{Name: handler.SessionCookie, Value: forged}})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
