package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tooldex/tooldex/internal/api/handler"
	"github.com/tooldex/tooldex/internal/counter"
	"github.com/tooldex/tooldex/internal/store"
	"github.com/tooldex/tooldex/internal/turnstile"
	"github.com/tooldex/tooldex/pkg/models"
)

const validVoter = "1b4e28ba-2fa1-4d3b-a3f5-8a8d5e6f7a9b"

// --- fakes ---

type fakeCounters struct {
	toolVotes, requestVotes, views map[string]int64
	countsErr                      error

	castOutcome store.VoteOutcome
	castErr     error
	castFamily  string
	castTarget  string
	castVoter   string

	viewedTarget string
	viewErr      error
}

func (f *fakeCounters) ToolVotes(_ context.Context) (map[string]int64, bool, error) {
	return f.toolVotes, false, f.countsErr
}
func (f *fakeCounters) RequestVotes(_ context.Context) (map[string]int64, bool, error) {
	return f.requestVotes, false, f.countsErr
}
func (f *fakeCounters) Views(_ context.Context) (map[string]int64, bool, error) {
	return f.views, false, f.countsErr
}
func (f *fakeCounters) CastVote(_ context.Context, family, targetID, voterID string) (store.VoteOutcome, error) {
	f.castFamily, f.castTarget, f.castVoter = family, targetID, voterID
	return f.castOutcome, f.castErr
}
func (f *fakeCounters) AddView(_ context.Context, targetID string) error {
	f.viewedTarget = targetID
	return f.viewErr
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody(t, w)["error"].(map[string]any)["code"].(string)
}

// ========================================
// Vote Counts
// ========================================

func TestVoteCounts_ServesBareMapWithCacheHint(t *testing.T) {
	svc := &fakeCounters{toolVotes: map[string]int64{"tool-42": 7, "tool-7": 1}}
	h := handler.NewVoteCountsHandler(svc, models.VoteFamilyTool)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/votes", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=15, stale-while-revalidate=10", w.Header().Get("Cache-Control"))

	// Flat body, no envelope.
	body := decodeBody(t, w)
	assert.Equal(t, float64(7), body["tool-42"])
	assert.Equal(t, float64(1), body["tool-7"])
	assert.NotContains(t, body, "data")
}

func TestVoteCounts_RequestFamilyReadsRequestVotes(t *testing.T) {
	svc := &fakeCounters{requestVotes: map[string]int64{"9f2c1d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f": 3}}
	h := handler.NewVoteCountsHandler(svc, models.VoteFamilyRequest)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/requests/votes", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["9f2c1d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f"])
}

func TestVoteCounts_NilMapServesEmptyObject(t *testing.T) {
	h := handler.NewVoteCountsHandler(&fakeCounters{}, models.VoteFamilyTool)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/votes", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "{}", w.Body.String())
}

func TestVoteCounts_ColdFailure(t *testing.T) {
	h := handler.NewVoteCountsHandler(&fakeCounters{countsErr: errors.New("db down")}, models.VoteFamilyTool)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/votes", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errCode(t, w))
}

// ========================================
// Cast Vote
// ========================================

func TestCastVote_FirstVote(t *testing.T) {
	svc := &fakeCounters{castOutcome: store.OutcomeVoted}
	h := handler.NewCastVoteHandler(svc, models.VoteFamilyTool)

	body := `{"toolId":"tool-42","voterId":"` + validVoter + `"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/votes", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "voted", got["result"])
	assert.Equal(t, models.VoteFamilyTool, svc.castFamily)
	assert.Equal(t, "tool-42", svc.castTarget)
	assert.Equal(t, validVoter, svc.castVoter)
}

func TestCastVote_RepeatIsStillSuccess(t *testing.T) {
	svc := &fakeCounters{castOutcome: store.OutcomeAlreadyVoted}
	h := handler.NewCastVoteHandler(svc, models.VoteFamilyTool)

	body := `{"toolId":"tool-42","voterId":"` + validVoter + `"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/votes", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "already_voted", got["result"])
}

func TestCastVote_RequestFamilyUsesRequestID(t *testing.T) {
	svc := &fakeCounters{castOutcome: store.OutcomeVoted}
	h := handler.NewCastVoteHandler(svc, models.VoteFamilyRequest)

	body := `{"requestId":"9f2c1d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f","voterId":"` + validVoter + `"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/requests/votes", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "9f2c1d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f", svc.castTarget)
}

func TestCastVote_BadJSON(t *testing.T) {
	h := handler.NewCastVoteHandler(&fakeCounters{}, models.VoteFamilyTool)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/votes", strings.NewReader("not json")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
}

func TestCastVote_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad voter id", counter.ErrInvalidVoterID},
		{"bad target id", counter.ErrInvalidTargetID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewCastVoteHandler(&fakeCounters{castErr: tt.err}, models.VoteFamilyTool)

			body := `{"toolId":"x","voterId":"y"}`
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/votes", strings.NewReader(body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
		})
	}
}

func TestCastVote_StoreError(t *testing.T) {
	h := handler.NewCastVoteHandler(&fakeCounters{castErr: errors.New("db down")}, models.VoteFamilyTool)

	body := `{"toolId":"tool-42","voterId":"` + validVoter + `"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/votes", strings.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ========================================
// Views
// ========================================

func TestViewCounts_ShorterCacheHint(t *testing.T) {
	svc := &fakeCounters{views: map[string]int64{"tool-42": 120}}
	h := handler.NewViewCountsHandler(svc)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/views", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=10, stale-while-revalidate=5", w.Header().Get("Cache-Control"))
	assert.Equal(t, float64(120), decodeBody(t, w)["tool-42"])
}

func TestAddView_Records(t *testing.T) {
	svc := &fakeCounters{}
	h := handler.NewAddViewHandler(svc)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/views", strings.NewReader(`{"toolId":"tool-42"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tool-42", svc.viewedTarget)
	assert.Equal(t, true, decodeBody(t, w)["success"])
}

func TestAddView_InvalidTarget(t *testing.T) {
	h := handler.NewAddViewHandler(&fakeCounters{viewErr: counter.ErrInvalidTargetID})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/views", strings.NewReader(`{"toolId":"NOT A SLUG"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
}

// ========================================
// Key Registration
// ========================================

type fakeRegistrar struct {
	err   error
	calls int
	email string
}

func (f *fakeRegistrar) Register(_ context.Context, _, email, _, _ string) error {
	f.calls++
	f.email = email
	return f.err
}

func TestRegisterKey_Success(t *testing.T) {
	reg := &fakeRegistrar{}
	h := handler.NewRegisterKeyHandler(reg)

	body := `{"name":"Ada","email":"Ada@Example.com","turnstileToken":"tok"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "If your address is eligible, your API key is on its way by email.", got["message"])
	assert.Equal(t, "ada@example.com", reg.email, "email is lowercased before use")
}

func TestRegisterKey_ExistingEmailGetsSameMessage(t *testing.T) {
	// The registrar reports nil for duplicates; the handler must not be
	// able to tell, and the body must be byte-identical to a fresh issue.
	h := handler.NewRegisterKeyHandler(&fakeRegistrar{})

	body := `{"name":"Ada","email":"taken@example.com","turnstileToken":"tok"}`
	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(body)))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(body)))

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestRegisterKey_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@b.com","turnstileToken":"tok"}`},
		{"blank name", `{"name":"   ","email":"a@b.com","turnstileToken":"tok"}`},
		{"missing email", `{"name":"Ada","turnstileToken":"tok"}`},
		{"email without at sign", `{"name":"Ada","email":"not-an-email","turnstileToken":"tok"}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistrar{}
			h := handler.NewRegisterKeyHandler(reg)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
			assert.Equal(t, 0, reg.calls)
		})
	}
}

func TestRegisterKey_TurnstileRejected(t *testing.T) {
	h := handler.NewRegisterKeyHandler(&fakeRegistrar{err: turnstile.ErrTokenInvalid})

	body := `{"name":"Ada","email":"a@b.com","turnstileToken":"bad"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
}

func TestRegisterKey_TurnstileUnreachable(t *testing.T) {
	h := handler.NewRegisterKeyHandler(&fakeRegistrar{err: turnstile.ErrUnreachable})

	body := `{"name":"Ada","email":"a@b.com","turnstileToken":"tok"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/keys", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "CAPTCHA_UNAVAILABLE", errCode(t, w))
}

// ========================================
// Tools Directory
// ========================================

type fakeDirectory struct {
	tools  []*models.Tool
	total  int
	tool   *models.Tool
	err    error
	filter store.ToolFilter
}

func (f *fakeDirectory) ListTools(_ context.Context, filter store.ToolFilter) ([]*models.Tool, int, error) {
	f.filter = filter
	return f.tools, f.total, f.err
}

func (f *fakeDirectory) GetTool(_ context.Context, _ string) (*models.Tool, error) {
	return f.tool, f.err
}

func TestListTools_PaginationDefaultsAndClamps(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, 20},
		{"explicit", "?page=3&limit=50", 3, 50},
		{"limit clamped", "?limit=500", 1, 100},
		{"negative page", "?page=-2", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &fakeDirectory{}
			h := handler.NewListToolsHandler(dir)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tools"+tt.query, nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantPage, dir.filter.Page)
			assert.Equal(t, tt.wantLimit, dir.filter.Limit)
		})
	}
}

func TestListTools_CategoryFilterAndMeta(t *testing.T) {
	dir := &fakeDirectory{
		tools: []*models.Tool{{Slug: "tool-42", Name: "Tool 42", Category: "writing"}},
		total: 41,
	}
	h := handler.NewListToolsHandler(dir)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tools?category=writing&page=2&limit=20", nil))

	assert.Equal(t, "writing", dir.filter.Category)

	body := decodeBody(t, w)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["page"])
	assert.Equal(t, float64(41), meta["total"])
	assert.Equal(t, true, meta["has_next"])
}

func TestGetTool_NotFound(t *testing.T) {
	h := handler.NewGetToolHandler(&fakeDirectory{err: store.ErrNotFound})

	r := httptest.NewRequest(http.MethodGet, "/v1/tools/no-such-tool", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slug", "no-such-tool")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestGetTool_Found(t *testing.T) {
	h := handler.NewGetToolHandler(&fakeDirectory{
		tool: &models.Tool{Slug: "tool-42", Name: "Tool 42"},
	})

	r := httptest.NewRequest(http.MethodGet, "/v1/tools/tool-42", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slug", "tool-42")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "tool-42", data["slug"])
}

// ========================================
// Category Stats
// ========================================

type fakeStats struct {
	stats []*models.CategoryStat
	err   error
}

func (f *fakeStats) CategoryStats(_ context.Context) ([]*models.CategoryStat, bool, error) {
	return f.stats, false, f.err
}

func TestCategoryStats_Serves(t *testing.T) {
	h := handler.NewCategoryStatsHandler(&fakeStats{
		stats: []*models.CategoryStat{{Category: "writing", ToolCount: 12, VoteCount: 340}},
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/stats/categories", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "writing", data[0].(map[string]any)["category"])
}

func TestCategoryStats_NilServesEmptyList(t *testing.T) {
	h := handler.NewCategoryStatsHandler(&fakeStats{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/stats/categories", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

// ========================================
// Content Sync Webhook
// ========================================

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) InvalidateAll() { f.calls++ }

func TestContentSync_Invalidates(t *testing.T) {
	inv := &fakeInvalidator{}
	h := handler.NewContentSyncHandler(inv)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/content-sync",
		strings.NewReader(`{"event":"tools_updated"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, true, decodeBody(t, w)["success"])
}

func TestContentSync_EmptyBodyStillInvalidates(t *testing.T) {
	inv := &fakeInvalidator{}
	h := handler.NewContentSyncHandler(inv)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/content-sync", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, inv.calls)
}
