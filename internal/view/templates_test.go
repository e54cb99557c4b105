package view

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyroom/tallyroom/internal/access"
)

func fixedPolicy() access.Policy {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	return access.NewPolicy(access.ClockFunc(func() time.Time { return now }), time.UTC)
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(fixedPolicy())
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
	assert.True(t, engine.HasForm(access.ModuleMSP))
	assert.False(t, engine.HasForm(access.ModuleReports))
}

func TestRenderFormAppliesWindow(t *testing.T) {
	engine, err := NewEngine(fixedPolicy())
	require.NoError(t, err)

	var open bytes.Buffer
	allowed, err := engine.RenderForm(&open, access.RoleMSP, FormData{Module: access.ModuleMSP, Date: "2024-06-14", CSRFToken: "tok"})
	require.NoError(t, err)
	require.True(t, allowed)
	require.NotContains(t, open.String(), "disabled")
	require.Contains(t, open.String(), `value="tok"`)
	require.Contains(t, open.String(), `data-module="MSP"`)

	var closed bytes.Buffer
	allowed, err = engine.RenderForm(&closed, access.RoleMSP, FormData{Module: access.ModuleMSP, Date: "2024-06-10"})
	require.NoError(t, err)
	require.False(t, allowed)
	// Hidden fields, five inputs and the submit button.
	require.Equal(t, 8, strings.Count(closed.String(), `disabled="disabled"`))
}

func TestRenderFormDateBounds(t *testing.T) {
	engine, err := NewEngine(fixedPolicy())
	require.NoError(t, err)

	cases := []struct {
		role    access.Role
		module  access.Module
		bounded bool
	}{
		{access.RoleAudit, access.ModuleAudit, true},
		{access.RoleSilver, access.ModuleSilver, true},
		{access.RoleSuperAdmin, access.ModuleAudit, false},
		{access.RoleLocationAdmin, access.ModuleMSP, false},
		{access.RoleManager, access.ModuleSilverPurchase, false},
	}
	for _, tc := range cases {
		t.Run(tc.role.String()+"/"+tc.module.String(), func(t *testing.T) {
			var buf bytes.Buffer
			_, err := engine.RenderForm(&buf, tc.role, FormData{Module: tc.module, Date: "2024-06-15"})
			require.NoError(t, err)
			out := buf.String()
			if tc.bounded {
				require.Contains(t, out, `min="2024-06-14"`)
				require.Contains(t, out, `max="2024-06-15"`)
			} else {
				require.NotContains(t, out, `min="2024-06-14"`)
				require.NotContains(t, out, `max="2024-06-15"`)
			}
		})
	}
}

func TestRenderFormEveryModule(t *testing.T) {
	engine, err := NewEngine(fixedPolicy())
	require.NoError(t, err)
	for module := range formFiles {
		var buf bytes.Buffer
		allowed, err := engine.RenderForm(&buf, access.RoleSuperAdmin, FormData{Module: module})
		require.NoError(t, err, module.String())
		require.True(t, allowed)
		require.Contains(t, buf.String(), "<form", module.String())
	}
	var buf bytes.Buffer
	_, err = engine.RenderForm(&buf, access.RoleSuperAdmin, FormData{Module: access.ModuleReports})
	require.Error(t, err)
}

func TestFormHandler(t *testing.T) {
	engine, err := NewEngine(fixedPolicy())
	require.NoError(t, err)
	h := NewHandler(nil, engine, nil, access.Middleware{Policy: fixedPolicy()})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(access.ContextWithPrincipal(req.Context(), access.Principal{UserID: 2, Role: access.RoleManager})))
		})
	})
	r.Route("/forms", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forms/Vendors", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "true", rr.Header().Get(EditableHeader))
	require.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forms/Audit?date=2024-06-15", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "false", rr.Header().Get(EditableHeader))
	require.Contains(t, rr.Body.String(), `disabled="disabled"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forms/Reports", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
