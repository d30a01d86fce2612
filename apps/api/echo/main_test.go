package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/purelifecenter/portal/apps/api/echo"
	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/compass"
	"github.com/purelifecenter/portal/core/consent"
	"github.com/purelifecenter/portal/core/content"
	"github.com/purelifecenter/portal/core/i18n"
	"github.com/purelifecenter/portal/core/knowledge"
	"github.com/purelifecenter/portal/core/push"
	"github.com/purelifecenter/portal/core/training"
	"github.com/purelifecenter/portal/core/user"
	"github.com/purelifecenter/portal/services/email"
	"github.com/purelifecenter/portal/storage/database/inmem"
	"github.com/purelifecenter/portal/storage/files"
	"github.com/purelifecenter/portal/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app     Server
	conf    *core.Config
	log     *testutil.Logger
	events  *testutil.Publisher
	mailSvc *emailsvc.ConsoleServiceMock
	sender  *fakeSender

	usrRepo user.Repository
	usrSvc  user.Service

	compassSvc   compass.Service
	consentSvc   consent.Service
	contentSvc   content.Service
	knowledgeSvc knowledge.Service
	pushSvc      push.Service
	i18nSvc      i18n.Service
	chatSvc      chat.Service
	trainingSvc  training.Service
}

func setup(t *testing.T) *testEnv {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()

	// set up DB & repos
	db := inmemdb.Open()
	env := &testEnv{
		conf:    conf,
		log:     logger,
		events:  new(testutil.Publisher),
		mailSvc: emailsvc.NewConsoleServiceMock(conf, logger),
		sender:  new(fakeSender),
		usrRepo: inmemdb.NewUserRepository(db),
	}

	fileStore, err := files.NewLocalStore(t.TempDir(), "http://localhost:8000/media")
	if err != nil {
		t.Fatalf("files.NewLocalStore() failed: %v", err)
	}

	// set up services
	usrSvc := user.NewServiceMock(env.usrRepo, env.mailSvc, conf, logger)
	env.usrSvc = usrSvc
	env.compassSvc = compass.NewService(inmemdb.NewCompassRepository(db))
	env.consentSvc = consent.NewService(inmemdb.NewConsentRepository(db))
	env.contentSvc = content.NewService(inmemdb.NewContentRepository(db))
	env.knowledgeSvc = knowledge.NewService(inmemdb.NewKnowledgeRepository(db), fileStore, logger)
	env.pushSvc = push.NewService(inmemdb.NewPushRepository(db), env.sender, conf, logger)
	env.i18nSvc = i18n.NewService(inmemdb.NewI18nRepository(db))
	env.chatSvc = chat.NewService(chat.Deps{
		Repo:    inmemdb.NewChatRepository(db),
		Users:   usrSvc,
		Pusher:  env.pushSvc,
		MailSvc: env.mailSvc,
		Events:  env.events,
		Conf:    conf,
		Log:     logger,
	})
	env.trainingSvc = training.NewService(inmemdb.NewTrainingRepository(db), usrSvc, env.events, logger)

	// set up server
	env.app = NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		CompassSvc:     env.compassSvc,
		ConsentSvc:     env.consentSvc,
		ContentSvc:     env.contentSvc,
		KnowledgeSvc:   env.knowledgeSvc,
		PushSvc:        env.pushSvc,
		I18nSvc:        env.i18nSvc,
		ChatSvc:        env.chatSvc,
		TrainingSvc:    env.trainingSvc,
	})
	return env
}

// users creates one user per role family: admin, leader, member (sponsored by the leader) and an inactive member.
func (env *testEnv) users(t *testing.T) (admin, leader, member, inactive user.User) {
	admin = testutil.CreateUser(t, env.usrRepo, "Admin", "admin01", "admin@test.cd", "secret", []string{user.RoleAdmin}, true)
	leader = testutil.CreateUser(t, env.usrRepo, "Leader", "leader01", "leader@test.cd", "secret", []string{user.RoleLeader}, true)
	member = testutil.CreateRecruit(t, env.usrRepo, leader.ID, "Member", "member01", "member@test.cd", "secret", []string{user.RoleMember}, true)
	inactive = testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog01", "ndog@test.cd", "secret", []string{user.RoleMember}, false) // 😂
	return
}

func (env *testEnv) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		if tt.method == "" {
			tt.method = http.MethodGet
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			if tt.wantData == nil {
				assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

// do sends a single request and decodes a JSON response into out, when given.
func (env *testEnv) do(t *testing.T, method, path, token string, body []byte, out interface{}) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body)
	env.app.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
		}
	}
	return rec
}

type fakeSender struct {
	sent int
}

func (fs *fakeSender) Send(_ context.Context, _ push.Config, _ push.Subscription, _ []byte, _ int) (int, error) {
	fs.sent++
	return http.StatusCreated, nil
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
