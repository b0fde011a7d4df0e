package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/makeasinger/moviegen/internal/auth"
	"github.com/makeasinger/moviegen/internal/middleware"
)

const jwtSecret = "middleware-suite-secret"

var _ = Describe("AuthMiddleware", func() {
	var app *fiber.App

	BeforeEach(func() {
		m := middleware.NewAuthMiddleware(jwtSecret)
		app = fiber.New()
		app.Get("/auth/verify", m.Verify)
		app.Get("/me", m.Authenticate(), func(c *fiber.Ctx) error {
			return c.SendString(middleware.GetUserID(c) + "|" + middleware.GetUserEmail(c))
		})
		app.Get("/ws", m.AuthenticateQuery(), func(c *fiber.Ctx) error {
			return c.SendString(middleware.GetUserID(c))
		})
	})

	get := func(path, authHeader string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		resp, err := app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	body := func(resp *http.Response) string {
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(b)
	}

	token := func(userID string) string {
		t, err := auth.GenerateLegacyToken(userID, userID+"@example.com", jwtSecret, 0)
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	It("stores the user from a valid bearer token", func() {
		resp := get("/me", "Bearer "+token("user-1"))
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(body(resp)).To(Equal("user-1|user-1@example.com"))
	})

	DescribeTable("rejects bad credentials",
		func(header, message string) {
			resp := get("/me", header)
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))
			Expect(body(resp)).To(And(ContainSubstring("UNAUTHORIZED"), ContainSubstring(message)))
		},
		Entry("missing header", "", "Missing authorization header"),
		Entry("wrong scheme", "Basic abc", "Invalid authorization header format"),
		Entry("garbage token", "Bearer not-a-jwt", "Invalid or expired token"),
	)

	It("rejects tokens signed with another secret", func() {
		other, err := auth.GenerateLegacyToken("user-1", "", "another-secret", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(get("/me", "Bearer "+other).StatusCode).To(Equal(fiber.StatusUnauthorized))
	})

	It("accepts a token in the query for websocket upgrades", func() {
		resp := get("/ws?token="+token("user-9"), "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(body(resp)).To(Equal("user-9"))

		Expect(get("/ws", "").StatusCode).To(Equal(fiber.StatusUnauthorized))
	})

	It("answers ForwardAuth verification with user headers", func() {
		resp := get("/auth/verify", "Bearer "+token("user-3"))
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(resp.Header.Get("X-User-Id")).To(Equal("user-3"))
		Expect(resp.Header.Get("X-User-Email")).To(Equal("user-3@example.com"))

		Expect(get("/auth/verify", "").StatusCode).To(Equal(fiber.StatusUnauthorized))
	})

	It("refuses everything when no secret is configured", func() {
		unconfigured := middleware.NewAuthMiddleware("")
		a := fiber.New()
		a.Get("/me", unconfigured.Authenticate(), func(c *fiber.Ctx) error { return c.SendStatus(200) })

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token("user-1"))
		resp, err := a.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))
	})
})

var _ = Describe("RequestContext", func() {
	It("assigns a request id and keeps a caller-supplied one", func() {
		app := fiber.New()
		app.Use(middleware.RequestContext())
		app.Get("/ping", func(c *fiber.Ctx) error {
			return c.SendString(middleware.GetRequestID(c))
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Header.Get(middleware.HeaderRequestID)).To(HaveLen(36))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(middleware.HeaderRequestID, "abc-123")
		resp, err = app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Header.Get(middleware.HeaderRequestID)).To(Equal("abc-123"))
	})

	It("applies the error handler status for failing handlers", func() {
		app := fiber.New()
		app.Use(middleware.RequestContext())
		app.Get("/missing", func(c *fiber.Ctx) error {
			return fiber.ErrNotFound
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
	})
})
