package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/financial-control/internal/api/handlers"
	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/domain"
	"github.com/dvloznov/financial-control/internal/jobs"
	"github.com/dvloznov/financial-control/internal/jobs/inmemory"
	"github.com/dvloznov/financial-control/internal/metrics"
	"github.com/dvloznov/financial-control/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var fixedNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

type fakeDrive struct {
	configured    bool
	authenticated bool
	files         []cloudsync.RemoteFile
	err           error
}

func (d *fakeDrive) HasCredentials() bool { return d.configured }

func (d *fakeDrive) IsAuthenticated() bool { return d.authenticated }

func (d *fakeDrive) ListBackups(ctx context.Context) ([]cloudsync.RemoteFile, error) {
	return d.files, d.err
}

type testServer struct {
	handler http.Handler
	store   *datastore.Store
	jobs    *inmemory.Store
	drive   *fakeDrive
}

func newTestServer(t *testing.T, backend storage.Backend) *testServer {
	t.Helper()
	return newTestServerWithDrive(t, backend, &fakeDrive{configured: true, authenticated: true})
}

func newTestServerWithDrive(t *testing.T, backend storage.Backend, drive handlers.DriveBackups) *testServer {
	t.Helper()
	m := metrics.New()
	store, err := datastore.New(context.Background(), backend,
		datastore.WithClock(func() time.Time { return fixedNow }),
		datastore.WithMetrics(m),
	)
	if err != nil {
		t.Fatal(err)
	}
	jobStore := inmemory.NewStore()

	h := NewRouter(Deps{
		Store:     store,
		Drive:     drive,
		Publisher: inmemory.NewQueue(10, jobStore),
		Jobs:      jobStore,
		Metrics:   m,
		Log:       zerolog.Nop(),

		SyncTimeout: time.Second,
	})
	fake, _ := drive.(*fakeDrive)
	return &testServer{handler: h, store: store, jobs: jobStore, drive: fake}
}

func (s *testServer) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestTransactionsCRUD(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))

	rec := s.do(t, http.MethodPost, "/api/v1/transacoes",
		`{"tipo":"receita","categoria":"Salário","descricao":"Salário","valor":5000,"data":"2025-09-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created domain.Transaction
	decode(t, rec, &created)
	if created.ID == 0 || created.Date.String() != "2025-09-01" {
		t.Errorf("created = %+v", created)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/transacoes", `{"tipo":"gasto","categoria":"Moradia","descricao":"Aluguel","valor":"3500"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense: %d %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/estatisticas", "")
	var stats struct {
		Saldo           json.Number `json:"saldo"`
		TotalReceitas   json.Number `json:"totalReceitas"`
		TotalTransacoes int         `json:"totalTransacoes"`
	}
	decode(t, rec, &stats)
	if stats.Saldo != "1500" || stats.TotalReceitas != "5000" || stats.TotalTransacoes != 2 {
		t.Errorf("stats = %+v", stats)
	}

	path := fmt.Sprintf("/api/v1/transacoes/%d", created.ID)
	rec = s.do(t, http.MethodPut, path, `{"tipo":"receita","categoria":"Freelance","descricao":"Projeto","valor":6000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/transacoes?categoria=Freelance", "")
	var list []domain.Transaction
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Description != "Projeto" {
		t.Errorf("filtered list = %+v", list)
	}

	rec = s.do(t, http.MethodDelete, path, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = s.do(t, http.MethodDelete, path, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete of unknown id: %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/transacoes", "")
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("expected 1 transaction left, got %d", len(list))
	}
}

func TestTransactions_BadRequests(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/api/v1/transacoes", `{`, http.StatusBadRequest},
		{"unknown tipo", http.MethodPost, "/api/v1/transacoes", `{"tipo":"outro","valor":1}`, http.StatusBadRequest},
		{"zero valor", http.MethodPost, "/api/v1/transacoes", `{"tipo":"gasto","valor":0}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/v1/transacoes", `{"tipo":"gasto","valor":1,"data":"01/09/2025"}`, http.StatusBadRequest},
		{"bad id", http.MethodPut, "/api/v1/transacoes/abc", `{"tipo":"gasto","valor":1}`, http.StatusBadRequest},
		{"unknown id", http.MethodPut, "/api/v1/transacoes/42", `{"tipo":"gasto","valor":1}`, http.StatusNotFound},
		{"bad filter date", http.MethodGet, "/api/v1/transacoes?from=yesterday", "", http.StatusBadRequest},
		{"bad filter tipo", http.MethodGet, "/api/v1/transacoes?tipo=x", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := s.do(t, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("got %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestExportImport(t *testing.T) {
	src := newTestServer(t, storage.NewMemoryBackend(0))
	src.do(t, http.MethodPost, "/api/v1/transacoes", `{"tipo":"gasto","categoria":"Lazer","descricao":"Cinema","valor":42.5}`)

	rec := src.do(t, http.MethodGet, "/api/v1/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="financial-data-2025-09-01.json"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	exported := rec.Body.String()

	dst := newTestServer(t, storage.NewMemoryBackend(0))
	rec = dst.do(t, http.MethodPost, "/api/v1/import", exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body)
	}
	doc, _ := dst.store.GetAllData(context.Background())
	if len(doc.Transactions) != 1 || doc.Transactions[0].Description != "Cinema" {
		t.Errorf("imported transactions = %+v", doc.Transactions)
	}

	rec = dst.do(t, http.MethodPost, "/api/v1/import", `{"version":"1.0.0","user":"u","transacoes":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("import without contas: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "contas") {
		t.Errorf("expected missing key in message, got %s", rec.Body)
	}
}

func TestImport_Multipart(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "backup.json")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(`{"version":"2.0.0","user":"someone","transacoes":[],"contas":[]}`))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("multipart import: %d %s", rec.Code, rec.Body)
	}
	doc, _ := s.store.GetAllData(context.Background())
	if doc.User != "someone" || doc.Version != "2.0.0" {
		t.Errorf("document = %+v", doc)
	}
}

func TestClear(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))
	s.do(t, http.MethodPost, "/api/v1/transacoes", `{"tipo":"gasto","valor":1}`)

	rec := s.do(t, http.MethodPost, "/api/v1/clear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: %d", rec.Code)
	}
	var doc domain.FinancialDocument
	decode(t, rec, &doc)
	if len(doc.Transactions) != 0 || len(doc.Accounts) != 2 {
		t.Errorf("document after clear = %+v", doc)
	}
}

func TestPersistenceFailure_Returns507(t *testing.T) {
	seedSrc := storage.NewMemoryBackend(0)
	newTestServer(t, seedSrc)
	seeded, _ := seedSrc.Get(context.Background(), datastore.DefaultKey)

	s := newTestServer(t, storage.NewMemoryBackend(int64(len(seeded)+16)))
	body := fmt.Sprintf(`{"tipo":"gasto","valor":1,"descricao":%q}`, strings.Repeat("x", 200))

	rec := s.do(t, http.MethodPost, "/api/v1/transacoes", body)
	if rec.Code != http.StatusInsufficientStorage {
		t.Fatalf("expected 507, got %d %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/dados", "")
	var doc domain.FinancialDocument
	decode(t, rec, &doc)
	if len(doc.Transactions) != 0 {
		t.Error("rejected write is visible")
	}
}

func TestSyncEndpoints(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))

	rec := s.do(t, http.MethodPost, "/api/v1/sync/drive/save", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("save: %d %s", rec.Code, rec.Body)
	}
	var accepted map[string]string
	decode(t, rec, &accepted)
	if accepted["direction"] != "upload" || accepted["status"] != "pending" {
		t.Errorf("accepted = %v", accepted)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+accepted["job_id"], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get job: %d", rec.Code)
	}
	var job jobs.SyncJob
	decode(t, rec, &job)
	if job.Direction != jobs.DirectionUpload {
		t.Errorf("job = %+v", job)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/sync/drive/load", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("load: %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/jobs?direction=download", "")
	var listed struct {
		Count int `json:"count"`
	}
	decode(t, rec, &listed)
	if listed.Count != 1 {
		t.Errorf("download jobs = %d, want 1", listed.Count)
	}

	if rec := s.do(t, http.MethodGet, "/api/v1/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: %d", rec.Code)
	}
}

func TestSyncEndpoints_NotConfigured(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))
	s.drive.configured = false

	for _, path := range []string{"/api/v1/sync/drive/save", "/api/v1/sync/drive/load"} {
		if rec := s.do(t, http.MethodPost, path, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: %d", path, rec.Code)
		}
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/sync/drive/backups", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("backups: %d", rec.Code)
	}
}

func TestListBackups(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))
	s.drive.files = []cloudsync.RemoteFile{{ID: "1", Name: cloudsync.BackupFileName}}

	rec := s.do(t, http.MethodGet, "/api/v1/sync/drive/backups", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), cloudsync.BackupFileName) {
		t.Errorf("backups: %d %s", rec.Code, rec.Body)
	}

	s.drive.err = &cloudsync.SyncError{Op: "list files", Err: errors.New("401 invalid credentials")}
	rec = s.do(t, http.MethodGet, "/api/v1/sync/drive/backups", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "401 invalid credentials") {
		t.Errorf("expected provider message, got %s", rec.Body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))

	if rec := s.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health: %d", rec.Code)
	}
	s.do(t, http.MethodGet, "/api/v1/dados", "")
	rec := s.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "fincontrol_store_operations_total") {
		t.Errorf("metrics: %d", rec.Code)
	}
}

// blockingAuth waits for its context, like a user who never completes consent.
type blockingAuth struct {
	started chan struct{}
}

func (a *blockingAuth) Authenticate(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	close(a.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (a *blockingAuth) Revoke(ctx context.Context, tok *oauth2.Token) error { return nil }

func TestListBackups_NeverStartsSignIn(t *testing.T) {
	auth := &blockingAuth{started: make(chan struct{})}
	adapter := cloudsync.NewAdapter(
		cloudsync.WithAuthenticator(auth),
		cloudsync.WithDriveFactory(func(context.Context, *oauth2.Config, cloudsync.Credentials) (cloudsync.DriveService, error) {
			return nil, nil
		}),
	)
	adapter.SetCredentials(cloudsync.Credentials{APIKey: "key", ClientID: "id.apps.googleusercontent.com"})
	s := newTestServerWithDrive(t, storage.NewMemoryBackend(0), adapter)

	rec := s.do(t, http.MethodGet, "/api/v1/sync/drive/backups", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before sign-in, got %d %s", rec.Code, rec.Body)
	}
	select {
	case <-auth.started:
		t.Fatal("request started an interactive sign-in")
	default:
	}

	// A sync job waiting on consent holds the adapter; the endpoint must not wait for it.
	if err := adapter.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	signedIn := make(chan error, 1)
	go func() { signedIn <- adapter.SignIn(ctx) }()
	<-auth.started

	done := make(chan int, 1)
	go func() { done <- s.do(t, http.MethodGet, "/api/v1/sync/drive/backups", "").Code }()
	select {
	case code := <-done:
		if code != http.StatusConflict {
			t.Errorf("expected 409 during sign-in, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Error("backups request blocked behind the sign-in")
	}

	cancel()
	if err := <-signedIn; !errors.Is(err, cloudsync.ErrAuthentication) {
		t.Errorf("SignIn error = %v", err)
	}
}

func TestImport_TooLarge(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))
	before, _ := s.store.GetAllData(context.Background())

	body := `{"version":"1","user":"u","transacoes":[],"contas":[],"pad":"` + strings.Repeat("x", handlers.MaxImportBytes) + `"}`
	rec := s.do(t, http.MethodPost, "/api/v1/import", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", rec.Code, rec.Body)
	}
	after, _ := s.store.GetAllData(context.Background())
	if after.User != before.User || len(after.Transactions) != len(before.Transactions) {
		t.Error("oversized import changed the document")
	}
}

func TestListBackups_RequiresSignIn(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryBackend(0))
	s.drive.authenticated = false
	if rec := s.do(t, http.MethodGet, "/api/v1/sync/drive/backups", ""); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}
