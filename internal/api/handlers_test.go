package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/logging"
	"DailyBriefing/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockRunner struct {
	record   domain.RunRecord
	err      error
	input    domain.RunInput
	busy     bool
	ctxErr   error
	deadline bool
}

func (m *mockRunner) Trigger(ctx context.Context, _ domain.Trigger, in domain.RunInput) (domain.RunRecord, error) {
	m.input = in
	m.ctxErr = ctx.Err()
	_, m.deadline = ctx.Deadline()
	return m.record, m.err
}

func (m *mockRunner) Busy() bool { return m.busy }

type mockHistory struct {
	runs []domain.RunRecord
	err  error
}

func (m *mockHistory) SaveRun(context.Context, domain.RunRecord) error { return nil }

func (m *mockHistory) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *mockHistory) GetRun(_ context.Context, id string) (domain.RunRecord, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.RunRecord{}, domain.ErrRunNotFound
}

func serve(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleTriggerRunSuccess(t *testing.T) {
	runner := &mockRunner{record: domain.RunRecord{ID: "r1", Status: domain.RunSucceeded, Message: "Bom dia", DeliveredTo: "skipped"}}
	s := NewServer(runner, nil, logging.Discard())

	w := serve(s, http.MethodPost, "/api/runs", []byte(`{"city":"Recife","send":false,"channel":"fallback"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp runResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != "r1" || resp.DeliveredTo != "skipped" || resp.Failure != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if runner.input.City != "Recife" || runner.input.Send == nil || *runner.input.Send || runner.input.Channel != "fallback" {
		t.Fatalf("unexpected input: %+v", runner.input)
	}
}

func TestHandleTriggerRunEmptyBody(t *testing.T) {
	runner := &mockRunner{record: domain.RunRecord{ID: "r2"}}
	s := NewServer(runner, nil, logging.Discard())

	w := serve(s, http.MethodPost, "/api/runs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleTriggerRunFailure(t *testing.T) {
	runner := &mockRunner{
		record: domain.RunRecord{ID: "r3"},
		err:    apperr.AtStage("fetch-events", apperr.Upstream("calendar_status", errors.New("google calendar returned 503"))),
	}
	s := NewServer(runner, nil, logging.Discard())

	w := serve(s, http.MethodPost, "/api/runs", []byte(`{"send":true}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var resp runResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Failure == nil || resp.Failure.Stage != "fetch-events" || resp.Failure.Kind != apperr.KindUpstream || resp.Message != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleTriggerRunOutlivesClient(t *testing.T) {
	runner := &mockRunner{record: domain.RunRecord{ID: "r4", Status: domain.RunSucceeded}}
	s := NewServer(runner, nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if runner.ctxErr != nil {
		t.Fatalf("run context must not follow the client, got %v", runner.ctxErr)
	}
	if !runner.deadline {
		t.Fatal("run context must carry a deadline")
	}
}

func TestHandleTriggerRunConflict(t *testing.T) {
	s := NewServer(&mockRunner{err: usecase.ErrRunInFlight}, nil, logging.Discard())

	if w := serve(s, http.MethodPost, "/api/runs", []byte(`{}`)); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestHandleTriggerRunBadJSON(t *testing.T) {
	s := NewServer(&mockRunner{}, nil, logging.Discard())

	if w := serve(s, http.MethodPost, "/api/runs", []byte(`{"send":"yes"`)); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleListAndGetRuns(t *testing.T) {
	history := &mockHistory{runs: []domain.RunRecord{{ID: "b"}, {ID: "a"}}}
	s := NewServer(&mockRunner{}, history, logging.Discard())

	w := serve(s, http.MethodGet, "/api/runs?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Runs  []domain.RunRecord `json:"runs"`
		Count int                `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Runs[0].ID != "b" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if w := serve(s, http.MethodGet, "/api/runs?limit=zero", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := serve(s, http.MethodGet, "/api/runs/a", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := serve(s, http.MethodGet, "/api/runs/zzz", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleRunsWithoutHistory(t *testing.T) {
	s := NewServer(&mockRunner{}, nil, logging.Discard())

	if w := serve(s, http.MethodGet, "/api/runs", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(&mockRunner{busy: true}, nil, logging.Discard())

	w := serve(s, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["running"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
}
