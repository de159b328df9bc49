package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/playmate/server/internal/app"
	"github.com/playmate/server/internal/config"
	"github.com/playmate/server/internal/db"
	"github.com/playmate/server/internal/observability/logging"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/repo"
	"github.com/playmate/server/internal/repo/memrepo"
	"github.com/stretchr/testify/require"
)

// testClock is a settable clock shared by every service of a test server
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testServer holds the server and its backing store for end-to-end tests
type testServer struct {
	Server *httptest.Server
	Clock  *testClock
	// DB is set for the PostgreSQL suite
	DB *sql.DB
	// Store is set for the in-memory suite
	Store *memrepo.Store
}

type serverOption func(cfg *config.Config)

func withProductionOTP() serverOption {
	return func(cfg *config.Config) { cfg.OTPDevMode = false }
}

func testConfig(opts ...serverOption) *config.Config {
	cfg := config.Defaults()
	cfg.Environment = "test"
	cfg.OTPSalt = "test-otp-salt"
	cfg.OTPDevMode = true
	cfg.Location = time.UTC
	cfg.AuthRateLimit = 0
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func startServer(t *testing.T, cfg *config.Config, stores app.Stores, pinger *sql.DB) (*httptest.Server, *testClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := &testClock{now: time.Now().UTC()}
	collab := app.Collaborators{Now: clock.Now}
	if pinger != nil {
		collab.DB = pinger
	}
	a := app.New(ctx, cfg, stores, collab, logging.Discard(), metrics.New("test"))

	server := httptest.NewServer(a.Router)
	t.Cleanup(server.Close)
	return server, clock
}

// newMemServer starts a server on the in-memory store
func newMemServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	store := memrepo.New()
	server, clock := startServer(t, testConfig(opts...), app.Stores{
		Users:     store.Users(),
		Interests: store.Interests(),
		Sessions:  store.Sessions(),
		Otps:      store.Otps(),
		Articles:  store.Articles(),
	}, nil)
	return &testServer{Server: server, Clock: clock, Store: store}
}

// openTestDB connects to DATABASE_URL and applies migrations, or skips the test
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	database, err := db.Open(context.Background(), databaseURL, db.DefaultPool, logging.Discard())
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.Migrate(database), "migrations must run successfully")
	return database
}

// newPGServer starts a server on a freshly truncated PostgreSQL database
func newPGServer(t *testing.T, database *sql.DB, opts ...serverOption) *testServer {
	t.Helper()
	require.NoError(t, TruncateTables(context.Background(), database), "truncate tables")
	server, clock := startServer(t, testConfig(opts...), app.Stores{
		Users:     repo.NewUserRepo(database),
		Interests: repo.NewInterestRepo(database),
		Sessions:  repo.NewSessionRepo(database),
		Otps:      repo.NewOtpRepo(database),
		Articles:  repo.NewArticleRepo(database),
	}, database)
	return &testServer{Server: server, Clock: clock, DB: database}
}

// TruncateTables empties every application table for a clean test state.
func TruncateTables(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx,
		"TRUNCATE TABLE interests, activities, sessions, otp_verifications, news_articles, users RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

func (s *testServer) BaseURL() string { return s.Server.URL }

// otpCount returns how many codes were issued for phone
func (s *testServer) otpCount(t *testing.T, phone string) int {
	t.Helper()
	if s.Store != nil {
		return s.Store.OtpCount(phone)
	}
	var n int
	require.NoError(t, s.DB.QueryRow(
		"SELECT COUNT(*) FROM otp_verifications WHERE phone_number = $1", phone).Scan(&n))
	return n
}

// interestRows returns the number of interest rows
func (s *testServer) interestRows(t *testing.T) int {
	t.Helper()
	if s.Store != nil {
		return s.Store.InterestCount()
	}
	var n int
	require.NoError(t, s.DB.QueryRow("SELECT COUNT(*) FROM interests").Scan(&n))
	return n
}

// apiResponse is a decoded JSON response
type apiResponse struct {
	Status int
	Body   map[string]any
	List   []any
	Raw    string
	Header http.Header
}

func (r apiResponse) str(key string) string {
	s, _ := r.Body[key].(string)
	return s
}

func (r apiResponse) object(key string) map[string]any {
	m, _ := r.Body[key].(map[string]any)
	return m
}

// do sends a JSON request with an optional bearer token
func (s *testServer) do(t *testing.T, client *http.Client, method, path string, body any, token string) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.BaseURL()+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if client == nil {
		client = s.Server.Client()
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := apiResponse{Status: resp.StatusCode, Raw: readBody(resp), Header: resp.Header}
	if len(out.Raw) > 0 && out.Raw[0] == '[' {
		require.NoError(t, json.Unmarshal([]byte(out.Raw), &out.List), out.Raw)
	} else if len(out.Raw) > 0 {
		require.NoError(t, json.Unmarshal([]byte(out.Raw), &out.Body), out.Raw)
	}
	return out
}

func (s *testServer) get(t *testing.T, path, token string) apiResponse {
	return s.do(t, nil, http.MethodGet, path, nil, token)
}

func (s *testServer) post(t *testing.T, path string, body any, token string) apiResponse {
	return s.do(t, nil, http.MethodPost, path, body, token)
}

func (s *testServer) put(t *testing.T, path, token string) apiResponse {
	return s.do(t, nil, http.MethodPut, path, nil, token)
}

// sendOTP requests a code and returns the dev code
func (s *testServer) sendOTP(t *testing.T, phone string) string {
	t.Helper()
	res := s.post(t, "/auth/send-otp", map[string]string{"phoneNumber": phone}, "")
	require.Equal(t, http.StatusOK, res.Status, "send-otp must return 200; body: %s", res.Raw)
	require.Equal(t, "otp_sent", res.str("message"))
	return res.str("devOtp")
}

// login runs send-otp and verify-otp and returns the verify response
func (s *testServer) login(t *testing.T, phone string) apiResponse {
	t.Helper()
	code := s.sendOTP(t, phone)
	require.NotEmpty(t, code, "devOtp must be present when OTP dev mode is on")
	res := s.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": phone, "otp": code}, "")
	require.Equal(t, http.StatusOK, res.Status, "verify-otp must return 200; body: %s", res.Raw)
	require.NotEmpty(t, res.str("token"))
	return res
}

// registration is a valid registration body
func registration(name, city string) map[string]any {
	return map[string]any{
		"name":         name,
		"userType":     "player",
		"dateOfBirth":  "1994-06-15",
		"workplace":    "Infosys",
		"locationName": "Baner",
		"city":         city,
		"society":      "Green Acres",
		"email":        name + "@example.com",
		"activities": []map[string]any{
			{"name": "Badminton", "skillLevel": "intermediate", "isPrimary": true},
		},
	}
}

// register creates a user and returns a full-session token and the user id
func (s *testServer) register(t *testing.T, phone, name, city string) (string, string) {
	t.Helper()
	bridge := s.login(t, phone)
	require.Equal(t, true, bridge.Body["requiresRegistration"])
	res := s.post(t, "/users/register", registration(name, city), bridge.str("token"))
	require.Equal(t, http.StatusCreated, res.Status, "register must return 201; body: %s", res.Raw)
	return res.str("token"), res.object("user")["id"].(string)
}

// userIDs extracts the ids of a search response
func userIDs(res apiResponse) []string {
	users, _ := res.Body["users"].([]any)
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.(map[string]any)["id"].(string))
	}
	return ids
}

// readBody reads and returns the response body (consumes it). Use for error messages only.
func readBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}
