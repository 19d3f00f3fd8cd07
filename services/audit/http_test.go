package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DoguKody/depradar/lib/lint"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func setupRouter(t testing.TB) (*gin.Engine, func()) {
	service, cleanup := setup(t)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1"), service)
	return engine, cleanup
}

func doRequest(t testing.TB, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	buffer := &bytes.Buffer{}
	if body != nil {
		err := json.NewEncoder(buffer).Encode(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, buffer)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHttpPutAndAudit(t *testing.T) {
	engine, cleanup := setupRouter(t)
	defer cleanup()

	{
		w := doRequest(t, engine, "POST", "/api/v1/sets", gin.H{
			"name": "scout-radar",
			"files": []gin.H{
				{"name": "requirements.txt", "content": auditedManifest},
			},
		})
		require.Equal(t, http.StatusCreated, w.Code)
		require.Contains(t, w.Body.String(), `"kind":"lint"`)
	}
	{
		w := doRequest(t, engine, "POST", "/api/v1/sets/scout-radar/audits", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		require.Contains(t, w.Body.String(), `"kind":"full"`)
		require.Contains(t, w.Body.String(), "GHSA-0001")
	}
	{
		w := doRequest(t, engine, "GET", "/api/v1/sets/scout-radar/reports/latest", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"kind":"full"`)
	}
	{
		w := doRequest(t, engine, "GET", "/api/v1/sets/scout-radar/reports", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"kind":"lint"`)
	}
	{
		w := doRequest(t, engine, "GET", "/api/v1/sets", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "scout-radar")
	}
	{
		w := doRequest(t, engine, "GET", "/api/v1/sets/missing", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	}
	{
		w := doRequest(t, engine, "POST", "/api/v1/sets/missing/audits", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	}
	{
		w := doRequest(t, engine, "DELETE", "/api/v1/sets/scout-radar", nil)
		require.Equal(t, http.StatusNoContent, w.Code)
	}
	{
		w := doRequest(t, engine, "GET", "/api/v1/sets/scout-radar", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	}
}

func TestHttpValidation(t *testing.T) {
	engine, cleanup := setupRouter(t)
	defer cleanup()

	{
		w := doRequest(t, engine, "POST", "/api/v1/sets", gin.H{
			"name":  "scout-radar",
			"files": []gin.H{},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), "validation failed")
	}
	{
		w := doRequest(t, engine, "POST", "/api/v1/sets", gin.H{
			"files": []gin.H{{"name": "requirements.txt", "content": ""}},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	{
		req := httptest.NewRequest("POST", "/api/v1/sets", bytes.NewBufferString("not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestHttpLint(t *testing.T) {
	engine, cleanup := setupRouter(t)
	defer cleanup()

	w := doRequest(t, engine, "POST", "/api/v1/lint", gin.H{
		"files": []gin.H{
			{"name": "requirements.txt", "content": "PANDAS==2.1.4\npandas==2.1.4\n"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), lint.RuleDuplicatePackage)
	require.Contains(t, w.Body.String(), lint.RuleNonCanonicalName)
}
