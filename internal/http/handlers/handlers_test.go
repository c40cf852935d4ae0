// README: Shared helpers for handler tests; callers are authenticated with a stub verifier.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	httpmiddleware "knx/internal/http/middleware"
	"knx/internal/infra"
)

// tokenByBearer maps the raw bearer token to a caller, so one router serves
// several identities.
type tokenByBearer map[string]*infra.FirebaseToken

func (m tokenByBearer) VerifyIDToken(_ context.Context, raw string) (*infra.FirebaseToken, error) {
	if t, ok := m[raw]; ok {
		return t, nil
	}
	return nil, context.Canceled
}

var callers = tokenByBearer{
	"alice": {UID: "alice", Claims: map[string]interface{}{}},
	"bob":   {UID: "bob", Claims: map[string]interface{}{}},
	"root":  {UID: "root", Claims: map[string]interface{}{"role": infra.RoleAdmin}},
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func authed(r *gin.Engine) *gin.RouterGroup {
	return r.Group("/", httpmiddleware.Auth(callers))
}

func do(r *gin.Engine, method, path string, body any, as string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+as)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(w.Body.String())).Decode(&out), w.Body.String())
	return out
}
