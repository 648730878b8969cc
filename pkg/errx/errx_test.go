package errx_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abraxas-365/tenantauth/pkg/errx"
	"github.com/gofiber/fiber/v2"
)

var (
	testRegistry = errx.NewRegistry("TEST")
	codeMissing  = testRegistry.Register("MISSING", errx.TypeNotFound, http.StatusNotFound, "missing")
	codeDown     = testRegistry.Register("DOWN", errx.TypeUnavailable, http.StatusServiceUnavailable, "store down")
)

func TestRegistryPrefixesCode(t *testing.T) {
	err := testRegistry.New(codeMissing)
	if err.Code != "TEST_MISSING" {
		t.Fatalf("expected TEST_MISSING, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", err.HTTPStatus)
	}
}

func TestIsCodeWalksChain(t *testing.T) {
	cause := errors.New("connection refused")
	inner := testRegistry.NewWithCause(codeDown, cause)
	outer := fmt.Errorf("lookup: %w", inner)

	if !errx.IsCode(outer, codeDown) {
		t.Fatalf("expected IsCode to find TEST_DOWN through fmt wrapping")
	}
	if errx.IsCode(outer, codeMissing) {
		t.Fatalf("did not expect TEST_MISSING")
	}
	if !errors.Is(outer, cause) {
		t.Fatalf("expected original cause to stay reachable")
	}
	if !errx.IsRetryable(outer) {
		t.Fatalf("UNAVAILABLE errors must be retryable")
	}
}

func TestIsCodeNil(t *testing.T) {
	if errx.IsCode(nil, codeMissing) {
		t.Fatalf("nil error never matches")
	}
}

func TestWrapPreservesCode(t *testing.T) {
	base := testRegistry.New(codeMissing)
	wrapped := errx.Wrap(base, "user lookup failed", errx.TypeNotFound)
	if wrapped.Code != "TEST_MISSING" {
		t.Fatalf("expected code to be preserved, got %s", wrapped.Code)
	}
	if errx.Wrap(nil, "x", errx.TypeInternal) != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate code")
		}
	}()
	r := errx.NewRegistry("DUP")
	r.Register("X", errx.TypeInternal, 500, "x")
	r.Register("X", errx.TypeInternal, 500, "x")
}

func serve(t *testing.T, err error) *http.Response {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: errx.FiberErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error { return err })

	resp, testErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if testErr != nil {
		t.Fatalf("app.Test: %v", testErr)
	}
	return resp
}

func TestFiberErrorHandlerSetsRetryAfter(t *testing.T) {
	resp := serve(t, testRegistry.New(codeDown))

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestFiberErrorHandlerHidesUnknownErrors(t *testing.T) {
	resp := serve(t, errors.New("pq: password authentication failed"))

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "pq:") {
		t.Fatalf("internal cause leaked into response: %s", body)
	}
}

func TestFiberErrorHandlerKeepsFiberStatus(t *testing.T) {
	resp := serve(t, fiber.ErrMethodNotAllowed)

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "HTTP_405") {
		t.Fatalf("expected HTTP_405 code, got %s", body)
	}
}

func TestRegisterDefaultsStatusFromType(t *testing.T) {
	r := errx.NewRegistry("DEF")
	code := r.Register("LIMIT", errx.TypeRateLimited, 0, "slow down")

	if code.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("expected 429 from type, got %d", code.HTTPStatus)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one registered code, got %d", r.Len())
	}
}
