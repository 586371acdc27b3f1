package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/config"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/db"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/engine"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/migrate"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/repo"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	return newTestServerWithAuth(t, AuthConfig{JWTSecret: testSecret})
}

func newTestServerWithAuth(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("office-1"), nil)
	handler, err := New(Config{Engine: e, BasePath: "/v1", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func bearer(t *testing.T, actor string, roles ...string) map[string]string {
	t.Helper()
	token, err := signDevToken(testSecret, actor, roles, nil)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error.Code
}

func TestHealthIsPublicAndRoutesRequireAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/stages", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/stages", nil, map[string]string{"Authorization": "Bearer garbage"})
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %d: %s", res.StatusCode, string(data))
	}
}

func TestStageCatalog(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	auth := bearer(t, "lawyer-1", "lawyer")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/stages", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stages status %d: %s", res.StatusCode, string(data))
	}
	var list StagesResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Items) != 7 || list.Items[0].StageName != "reception" || list.Items[6].StageName != "delivery" {
		t.Fatalf("unexpected catalog %+v", list.Items)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/stages/closing", nil, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown stage, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/document-types", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("document types status %d: %s", res.StatusCode, string(data))
	}
	var types DocumentTypesResponse
	if err := json.Unmarshal(data, &types); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(types.Items) != 5 {
		t.Fatalf("expected 5 document types, got %d", len(types.Items))
	}
}

func TestWorkflowLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := bearer(t, "lawyer-1", "lawyer")
	base := srv.URL + "/v1/cases/case-42/workflow"

	res, data := doJSON(t, client, http.MethodPost, base, nil, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("init status %d: %s", res.StatusCode, string(data))
	}
	var first domain.WorkflowStage
	if err := json.Unmarshal(data, &first); err != nil {
		t.Fatalf("unmarshal stage: %v", err)
	}
	if first.StageName != "reception" || first.Status != domain.StatusInProgress {
		t.Fatalf("unexpected first stage %+v", first)
	}

	res, data = doJSON(t, client, http.MethodPost, base, nil, auth)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "already_initialized" {
		t.Fatalf("expected already_initialized, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/advance", map[string]any{"require_complete": true}, auth)
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "stage_incomplete" {
		t.Fatalf("expected stage_incomplete, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/advance", map[string]any{
		"require_complete": true,
		"evidence": map[string]bool{
			"case.registered":    true,
			"client.identified":  true,
			"documents.received": true,
		},
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("advance status %d: %s", res.StatusCode, string(data))
	}
	var adv engine.AdvanceResult
	if err := json.Unmarshal(data, &adv); err != nil {
		t.Fatalf("unmarshal advance: %v", err)
	}
	if adv.PreviousStage.StageName != "reception" || adv.CurrentStage == nil || adv.CurrentStage.StageName != "planning" {
		t.Fatalf("unexpected advance %+v", adv)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/current", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("current status %d: %s", res.StatusCode, string(data))
	}
	var cur CurrentStageResponse
	if err := json.Unmarshal(data, &cur); err != nil {
		t.Fatalf("unmarshal current: %v", err)
	}
	if cur.Current == nil || cur.Current.StageName != "planning" || cur.RecommendedAgent != "estrategista" {
		t.Fatalf("unexpected current %+v", cur)
	}

	res, data = doJSON(t, client, http.MethodGet, base, nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("snapshot status %d: %s", res.StatusCode, string(data))
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(snap.Stages) != 7 || snap.Stages[0].Status != domain.StatusCompleted || snap.Stages[2].Status != domain.StatusPending {
		t.Fatalf("unexpected snapshot %+v", snap.Stages)
	}

	res, data = doJSON(t, client, http.MethodPatch, base+"/stages/drafting", map[string]any{"status": "in_progress"}, auth)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "stage_in_flight" {
		t.Fatalf("expected stage_in_flight, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?case_id=case-42", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var evts EventsResponse
	if err := json.Unmarshal(data, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts.Items) == 0 || evts.Items[len(evts.Items)-1].Type != "workflow.initialized" {
		t.Fatalf("expected workflow.initialized as the oldest event, got %+v", evts.Items)
	}
}

func TestAdvanceWithoutActiveStage(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/none/workflow/advance", nil, bearer(t, "owner-1", "owner"))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "no_active_stage" {
		t.Fatalf("expected no_active_stage, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDraftAndVerify(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := bearer(t, "lawyer-1", "lawyer")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/documents", map[string]any{
		"case_id":       "case-7",
		"document_type": "peticao-inicial",
		"case_data": map[string]any{
			"client_name":    "Maria Silva",
			"opposing_party": "Banco X",
			"lawyer_name":    "Dra. Ana",
			"lawyer_oab":     "SP 123456",
		},
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create document status %d: %s", res.StatusCode, string(data))
	}
	var doc domain.DraftedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if doc.CaseID != "case-7" || doc.DocumentType != "peticao-inicial" || doc.Content == "" {
		t.Fatalf("unexpected document %+v", doc)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/documents", map[string]any{
		"case_id":       "case-7",
		"document_type": "memorando",
	}, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/verifications", map[string]any{"document_id": doc.ID}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("verify status %d: %s", res.StatusCode, string(data))
	}
	var ver domain.VerificationResult
	if err := json.Unmarshal(data, &ver); err != nil {
		t.Fatalf("unmarshal verification: %v", err)
	}
	if ver.DocumentID != doc.ID {
		t.Fatalf("unexpected verification %+v", ver)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/documents/"+doc.ID+"/verifications", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list verifications status %d: %s", res.StatusCode, string(data))
	}
	var vers VerificationsResponse
	if err := json.Unmarshal(data, &vers); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(vers.Items) != 1 {
		t.Fatalf("expected one verification, got %d", len(vers.Items))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/verifications", map[string]any{"document_id": "missing"}, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAlertsResolveOnce(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := bearer(t, "assistant-1", "assistant")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/alerts", map[string]any{
		"case_id":  "case-9",
		"title":    "Prazo de contestação",
		"priority": "high",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create alert status %d: %s", res.StatusCode, string(data))
	}
	var alert domain.WorkflowAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		t.Fatalf("unmarshal alert: %v", err)
	}
	if alert.Status != domain.AlertPending {
		t.Fatalf("unexpected alert %+v", alert)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/alerts/"+alert.ID+"/resolve", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolve status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/alerts/"+alert.ID+"/resolve", nil, auth)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second resolve, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/alerts?case_id=case-9&status=resolved", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list alerts status %d: %s", res.StatusCode, string(data))
	}
	var list AlertsResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ResolvedBy == nil || *list.Items[0].ResolvedBy != "assistant-1" {
		t.Fatalf("unexpected alerts %+v", list.Items)
	}
}

func TestRolePermissionsEnforced(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/case-1/workflow", nil, bearer(t, "assistant-1", "assistant"))
	if res.StatusCode != http.StatusForbidden || errorCode(t, data) != "forbidden" {
		t.Fatalf("expected forbidden, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/stages", nil, bearer(t, "nobody"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for principal without roles, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyAuthUsesKeyRole(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	err := srv.Engine.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID:        "key-1",
		ActorID:   "lawyer-2",
		Role:      "lawyer",
		Name:      "ci",
		KeyHash:   repo.HashAPIKey("secret-key"),
		CreatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert key: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": "secret-key"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if who.ActorID != "lawyer-2" || who.Source != "api_key" || !hasPermission(who.Permissions, "workflow.write") {
		t.Fatalf("unexpected principal %+v", who)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", res.StatusCode)
	}
}

func TestDevLoginDisabledByDefault(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"actor_id":    "intruder",
		"permissions": []string{"*"},
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with dev login disabled, got %d: %s", res.StatusCode, string(data))
	}
	if bytes.Contains(data, []byte("token")) {
		t.Fatalf("no token may be minted: %s", string(data))
	}
}

func TestDevLoginTokenWorks(t *testing.T) {
	srv, cleanup := newTestServerWithAuth(t, AuthConfig{JWTSecret: testSecret, EnableDevLogin: true})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"actor_id": "owner-1",
		"roles":    []string{"owner"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/cases/case-1/workflow", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("init with dev token status %d: %s", res.StatusCode, string(data))
	}
}

func TestRunRecommendedAgent(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := bearer(t, "owner-1", "owner")
	if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/cases/case-3/workflow", nil, auth); res.StatusCode != http.StatusCreated {
		t.Fatalf("init status %d: %s", res.StatusCode, string(data))
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/agents/run", map[string]any{
		"case_id": "case-3",
		"input": map[string]any{
			"document_type": "peticao-inicial",
			"case_data":     map[string]any{"client_name": "Maria Silva"},
		},
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("run agent status %d: %s", res.StatusCode, string(data))
	}
	var run engine.AgentRun
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if run.Agent != "triagem" || run.Stage != "reception" || run.Result.Success {
		t.Fatalf("expected failed triage for missing client document, got %+v", run)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/alerts?case_id=case-3", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("alerts status %d: %s", res.StatusCode, string(data))
	}
	var list AlertsResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Priority != domain.PriorityHigh {
		t.Fatalf("expected one high priority alert, got %+v", list.Items)
	}
}
