package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/moviegen/internal/auth"
	"github.com/makeasinger/moviegen/internal/client"
	"github.com/makeasinger/moviegen/internal/config"
	"github.com/makeasinger/moviegen/internal/handler"
	"github.com/makeasinger/moviegen/internal/middleware"
	"github.com/makeasinger/moviegen/internal/service"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testAPIKey    = "sk-or-test"
	testUserID    = "test-user-123"
)

// upstream is a fake OpenRouter chat completions endpoint.
type upstream struct {
	server *httptest.Server

	mu      sync.Mutex
	calls   int
	headers http.Header
	body    map[string]interface{}
	respond http.HandlerFunc
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)

		u.mu.Lock()
		u.calls++
		u.headers = r.Header.Clone()
		u.body = body
		respond := u.respond
		u.mu.Unlock()

		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if respond == nil {
			http.Error(w, "no responder configured", http.StatusInternalServerError)
			return
		}
		respond(w, r)
	}))
	t.Cleanup(u.server.Close)
	return u
}

// reply makes the upstream answer with a completion whose content is given.
func (u *upstream) reply(content string) {
	u.setResponder(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{"message": map[string]interface{}{"role": "assistant", "content": content}},
			},
		})
	})
}

// fail makes the upstream answer with a bare status code.
func (u *upstream) fail(status int) {
	u.setResponder(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func (u *upstream) setResponder(fn http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.respond = fn
}

func (u *upstream) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func (u *upstream) lastRequest() (http.Header, map[string]interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.headers, u.body
}

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	upstream *upstream
	redis    *miniredis.Miniredis
	sessions *service.SessionService
}

// setupApp creates a Fiber app wired like main.go, pointed at a fake upstream
// and an in-process redis.
func setupApp(t *testing.T) *testApp {
	return setupAppWithLimit(t, 10000)
}

func setupAppWithLimit(t *testing.T, generatePerMin int) *testApp {
	t.Helper()

	up := newUpstream(t)
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	orCfg := &config.OpenRouterConfig{
		APIKey:      testAPIKey,
		BaseURL:     up.server.URL,
		Model:       service.DefaultModel,
		HTTPReferer: "http://localhost:8000",
		AppTitle:    "Movie Idea Generator",
	}
	completer := client.NewOpenRouterClient(orCfg)

	validate := validator.New()
	sessionService := service.NewSessionService(service.NewRequestBuilder(orCfg.Model), completer, nil)
	t.Cleanup(sessionService.Wait)

	sessionHandler := handler.NewSessionHandler(sessionService, validate)
	healthHandler := handler.NewHealthHandler(redisClient, true, sessionService.Count)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New()
	app.Use(middleware.RequestContext())

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/auth/verify", authMiddleware.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())
	sessions := api.Group("/sessions")
	sessions.Post("/", sessionHandler.Create)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Post("/:id/generate", rateLimiter.GenerateLimit(generatePerMin), sessionHandler.Generate)
	sessions.Post("/:id/reset", sessionHandler.Reset)
	sessions.Delete("/:id", sessionHandler.Delete)
	sessions.Get("/:id/notifications", sessionHandler.Notifications)

	return &testApp{app: app, upstream: up, redis: mr, sessions: sessionService}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.GenerateLegacyToken(userID, userID+"@example.com", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as the default test user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doUserRequest(t, app, testUserID, method, path, body)
}

func doUserRequest(t *testing.T, app *fiber.App, userID, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t, userID),
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// createSession creates a session for the default user and returns its id.
func createSession(t *testing.T, ta *testApp) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	view := parseJSON(t, resp)
	id, _ := view["sessionId"].(string)
	if id == "" {
		t.Fatalf("expected sessionId in %v", view)
	}
	return id
}

// notifications fetches the recorded notifications of a session.
func notifications(t *testing.T, ta *testApp, sessionID string) []map[string]interface{} {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/sessions/"+sessionID+"/notifications", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	var out struct {
		Notifications []map[string]interface{} `json:"notifications"`
	}
	if err := json.Unmarshal([]byte(readBody(t, resp)), &out); err != nil {
		t.Fatalf("failed to parse notifications: %v", err)
	}
	return out.Notifications
}

func echoesBelowJSON(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{
		"movieName":      "Echoes Below",
		"genre":          "Sci-Fi",
		"tagline":        "The past is only one flight of stairs away.",
		"plotSummary":    "Four friends find a door under the stairs.",
		"keyCharacters":  "Maya, the engineer; Theo, the skeptic.",
		"keyThemes":      "Friendship, time, consequence.",
		"storyStructure": "Three acts.",
		"coreConflict":   "Fixing the past erases the present.",
		"setting":        "Suburban Ohio, 1999.",
		"finalScene":     "Maya closes the portal.",
		"endCredits":     "Home-video footage.",
		"musicTheme":     "Analog synths.",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}
