package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/absento/apps/api/echo"
	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/proof"
	"github.com/trezcool/absento/core/reason"
	"github.com/trezcool/absento/services/email"
	"github.com/trezcool/absento/services/filestore"
	"github.com/trezcool/absento/services/pdf"
	"github.com/trezcool/absento/storage/cache"
	"github.com/trezcool/absento/storage/database/inmem"
	"github.com/trezcool/absento/tests"
)

const (
	studentRole = core.RoleStudent + "regular"
	managerRole = core.RoleManagerSecretary
)

type env struct {
	conf     *core.Config
	app      *echoapi.Server
	absences absence.Repository
	mail     *emailsvc.ConsoleServiceMock
	logger   *testutil.Logger
}

func setup(t *testing.T) *env {
	t.Helper()
	conf := &core.Config{
		AppName:         "Absento",
		TestMode:        true,
		SecretKey:       "test-secret",
		Timezone:        "Europe/Paris",
		FrontendBaseURL: "https://absento.test",
		Server:          core.ServerConfig{JWTExpirationDelta: time.Hour},
		Mail: core.MailConfig{
			DefaultFromEmail: "Vie scolaire <vie-scolaire@absento.test>",
			StudentDomain:    "etu.absento.test",
		},
		Cache: core.CacheConfig{TTL: time.Minute},
	}
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := inmemdb.NewDB()
	absRepo := inmemdb.NewAbsenceRepository(db)
	catalog := reason.NewCatalog(inmemdb.NewReasonRepository(db), logger)

	// set up services
	files, err := filestore.NewDisk(t.TempDir())
	require.NoError(t, err)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	validate, translator := core.NewValidator()
	proof.InitValidators(validate, translator)

	proofSvc := proof.NewService(proof.Deps{
		Tx:       db,
		Proofs:   inmemdb.NewProofRepository(db),
		Absences: absRepo,
		Failures: inmemdb.NewNotificationFailureRepository(db),
		Catalog:  catalog,
		Files:    files,
		Notifier: emailsvc.NewStudentSink(mailSvc, conf),
		Receipts: pdfsvc.NewReceiptRenderer(conf),
		Cache:    cache.NewMemory(),
		Validate: validate,
		Logger:   logger,
		Conf:     conf,
	})

	// set up server
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		ProofSvc:       proofSvc,
		Catalog:        catalog,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return &env{conf: conf, app: app, absences: absRepo, mail: mailSvc, logger: logger}
}

func (e *env) token(t *testing.T, id string, roles ...string) string {
	t.Helper()
	token, err := echoapi.GenerateToken(echoapi.NewClaims(core.Actor{ID: id, Roles: roles}, e.conf), e.conf)
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type httpTest struct {
	name     string
	path     string
	token    string
	wantCode int
}

func newAuthRequest(method, path, token string, body io.Reader, contentType string) *http.Request {
	if body == nil {
		body = http.NoBody
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func jsonBody(t *testing.T, obj interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("jsonBody(): %v", err)
	}
	return bytes.NewReader(data)
}

// multipartBody encodes fields and files (name -> content) under the "files" field.
func multipartBody(t *testing.T, fields url.Values, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, vals := range fields {
		for _, v := range vals {
			require.NoError(t, w.WriteField(name, v))
		}
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s): %v", rec.Body.String(), err)
	}
}

func checkCode(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
}
