package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/auth"
)

func trustRouter(t *testing.T, gate *TrustGate) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/internal/ping", gate.Require(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func newGate(t *testing.T, networks []string) *TrustGate {
	t.Helper()
	gate, err := NewTrustGate("internal-secret", networks, auth.DefaultTokenConfig("internal-secret"))
	if err != nil {
		t.Fatalf("NewTrustGate: %v", err)
	}
	return gate
}

func doPing(r *gin.Engine, setup func(req *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/internal/ping", nil)
	// An address outside every internal range unless the test overrides it.
	req.RemoteAddr = "203.0.113.50:4411"
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTrustGateStaticToken(t *testing.T) {
	r := trustRouter(t, newGate(t, nil))

	w := doPing(r, func(req *http.Request) {
		req.Header.Set("X-Internal-Token", "internal-secret")
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with header token, got %d", w.Code)
	}

	w = doPing(r, func(req *http.Request) {
		q := req.URL.Query()
		q.Set("token", "internal-secret")
		req.URL.RawQuery = q.Encode()
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", w.Code)
	}

	w = doPing(r, func(req *http.Request) {
		req.Header.Set("X-Internal-Token", "wrong")
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong token, got %d", w.Code)
	}
}

func TestTrustGatePrivateNetwork(t *testing.T) {
	r := trustRouter(t, newGate(t, []string{"127.0.0.0/8", "10.0.0.0/8"}))

	w := doPing(r, func(req *http.Request) {
		req.RemoteAddr = "10.1.2.3:9999"
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from private network, got %d", w.Code)
	}

	w = doPing(r, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 from public address, got %d", w.Code)
	}
}

func TestTrustGateServiceToken(t *testing.T) {
	r := trustRouter(t, newGate(t, nil))

	token, err := auth.CreateServiceToken("dashboard", auth.DefaultTokenConfig("internal-secret"))
	if err != nil {
		t.Fatalf("CreateServiceToken: %v", err)
	}

	w := doPing(r, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with service token, got %d", w.Code)
	}

	// A JWT in the query works too (websocket clients cannot set headers).
	w = doPing(r, func(req *http.Request) {
		q := req.URL.Query()
		q.Set("token", token)
		req.URL.RawQuery = q.Encode()
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with query service token, got %d", w.Code)
	}

	wrong, err := auth.CreateServiceToken("dashboard", auth.DefaultTokenConfig("other-secret"))
	if err != nil {
		t.Fatalf("CreateServiceToken: %v", err)
	}
	w = doPing(r, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+wrong)
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with foreign-signed token, got %d", w.Code)
	}
}

func TestParseNetworksRejectsBadCIDR(t *testing.T) {
	if _, err := ParseNetworks([]string{"not-a-network"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
