package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndUnmatchedLabel(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.GET("/statusonly", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ok", "200", principalAnonymous))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404", principalAnonymous))

	for _, p := range []string{"/ok", "/does-not-exist", "/another/missing", "/statusonly"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ok", "200", principalAnonymous)); got != baseOK+1 {
		t.Fatalf("counter /ok 200 = %v; want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404", principalAnonymous)); got != base404+2 {
		t.Fatalf("unmatched 404 = %v; want %v", got, base404+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404", principalAnonymous)); got != 0 {
		t.Fatalf("raw paths must not become labels, got %v", got)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

func TestMetrics_PrincipalLabel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	res := newAuthResolver()

	r := gin.New()
	r.Use(Metrics())
	r.GET("/parent/children", RequireParent(res, writeErr), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/toy/heartbeat", RequireAPIKey(res, writeErr), func(c *gin.Context) { c.Status(http.StatusOK) })

	parentKey := []string{"GET", "/parent/children", "200", principalParent}
	toyKey := []string{"POST", "/toy/heartbeat", "200", principalToy}
	rejectedKey := []string{"POST", "/toy/heartbeat", "401", principalAnonymous}
	baseParent := testutil.ToFloat64(httpReqs.WithLabelValues(parentKey...))
	baseToy := testutil.ToFloat64(httpReqs.WithLabelValues(toyKey...))
	baseRejected := testutil.ToFloat64(httpReqs.WithLabelValues(rejectedKey...))
	baseAuth := testutil.ToFloat64(authRejections.WithLabelValues("api_key"))

	req := httptest.NewRequest(http.MethodGet, "/parent/children", nil)
	req.Header.Set("Authorization", "Bearer tok-parent")
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/toy/heartbeat", nil)
	req.Header.Set(HeaderAPIKey, "raw-key")
	req.Header.Set(HeaderToyUUID, "toy-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/toy/heartbeat", nil)
	req.Header.Set(HeaderAPIKey, "wrong")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(httpReqs.WithLabelValues(parentKey...)); got != baseParent+1 {
		t.Fatalf("parent requests = %v", got-baseParent)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues(toyKey...)); got != baseToy+1 {
		t.Fatalf("toy requests = %v", got-baseToy)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues(rejectedKey...)); got != baseRejected+1 {
		t.Fatalf("rejected requests = %v", got-baseRejected)
	}
	if got := testutil.ToFloat64(authRejections.WithLabelValues("api_key")); got != baseAuth+1 {
		t.Fatalf("api_key rejections = %v", got-baseAuth)
	}
}
