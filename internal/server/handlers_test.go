package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginger-society/ginger-ws/internal/auth"
	"github.com/ginger-society/ginger-ws/internal/channel"
	"github.com/ginger-society/ginger-ws/internal/config"
	"github.com/ginger-society/ginger-ws/internal/mailer"
	"github.com/ginger-society/ginger-ws/internal/queue"
)

const testSecret = "test-secret"

type fakePublisher struct {
	envelopes []queue.Envelope
	failFor   map[string]error
	pingErr   error
}

func (f *fakePublisher) Publish(_ context.Context, env queue.Envelope) error {
	if err, ok := f.failFor[env.ChannelID]; ok {
		return err
	}
	f.envelopes = append(f.envelopes, env)
	return nil
}

func (f *fakePublisher) Ping(context.Context) error {
	return f.pingErr
}

type fakeResolver struct {
	ids      []int64
	err      error
	gotGroup string
	gotToken string
}

func (f *fakeResolver) GroupMemberIDs(_ context.Context, groupID string, token string) ([]int64, error) {
	f.gotGroup = groupID
	f.gotToken = token
	return f.ids, f.err
}

type fakeMailer struct {
	sent []mailer.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, email mailer.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		JWTSecret:          testSecret,
		IAMBaseURL:         "http://iam.internal",
		EmailSource:        "noreply@example.com",
		AmqpReconnectDelay: 5 * time.Second,
		MaxWSConnections:   100,
		PublishRateLimit:   1000,
		PublishRateBurst:   1000,
	}
}

func newTestServer(t *testing.T, publisher *fakePublisher, resolver *fakeResolver, sender *fakeMailer) *Server {
	t.Helper()
	return NewServer(testConfig(), channel.NewRegistry(), publisher, resolver, sender, clockwork.NewRealClock())
}

func signUserToken(t *testing.T, secret string) string {
	t.Helper()
	claims := auth.UserClaims{
		UserID:    "42",
		TokenType: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func signAPIToken(t *testing.T, secret string) string {
	t.Helper()
	claims := auth.APIClaims{
		GroupID: 7,
		Scopes:  []string{"publish"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func signServiceToken(t *testing.T, secret string) string {
	t.Helper()
	claims := auth.ServiceClaims{
		Scopes: []string{"email"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func doRequest(s *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestChannelPublish(t *testing.T) {
	publisher := &fakePublisher{}
	s := newTestServer(t, publisher, &fakeResolver{}, &fakeMailer{})

	rec := doRequest(s, http.MethodPost, "/notification/channels/orders/publish",
		`{"message":"order shipped"}`,
		map[string]string{"Authorization": "Bearer " + signUserToken(t, testSecret)})

	assert.Equal(t, 200, rec.Code)
	require.Len(t, publisher.envelopes, 1)
	assert.Equal(t, "orders", publisher.envelopes[0].ChannelID)
	assert.Equal(t, "order shipped", publisher.envelopes[0].Message)
}

func TestChannelPublishRequiresUserToken(t *testing.T) {
	s := newTestServer(t, &fakePublisher{}, &fakeResolver{}, &fakeMailer{})

	rec := doRequest(s, http.MethodPost, "/notification/channels/orders/publish",
		`{"message":"hi"}`, nil)
	assert.Equal(t, 401, rec.Code)

	rec = doRequest(s, http.MethodPost, "/notification/channels/orders/publish",
		`{"message":"hi"}`,
		map[string]string{"Authorization": "Bearer " + signUserToken(t, "wrong-secret")})
	assert.Equal(t, 401, rec.Code)
}

func TestGroupPublishRejectsUserTokenHeader(t *testing.T) {
	s := newTestServer(t, &fakePublisher{}, &fakeResolver{}, &fakeMailer{})

	// A valid user token presented on the user header must not satisfy the
	// API guard protecting the group route.
	rec := doRequest(s, http.MethodPost, "/notification/groups/eng/publish",
		`{"message":"hi"}`,
		map[string]string{"Authorization": "Bearer " + signUserToken(t, testSecret)})
	assert.Equal(t, 401, rec.Code)
}

func TestChannelPublishValidation(t *testing.T) {
	s := newTestServer(t, &fakePublisher{}, &fakeResolver{}, &fakeMailer{})
	headers := map[string]string{"Authorization": "Bearer " + signUserToken(t, testSecret)}

	rec := doRequest(s, http.MethodPost, "/notification/channels/orders/publish", `{}`, headers)
	assert.Equal(t, 400, rec.Code)

	rec = doRequest(s, http.MethodPost, "/notification/channels/orders/publish", `not json`, headers)
	assert.Equal(t, 400, rec.Code)
}

func TestChannelPublishBrokerFailure(t *testing.T) {
	publisher := &fakePublisher{failFor: map[string]error{"orders": errors.New("connection refused")}}
	s := newTestServer(t, publisher, &fakeResolver{}, &fakeMailer{})

	rec := doRequest(s, http.MethodPost, "/notification/channels/orders/publish",
		`{"message":"hi"}`,
		map[string]string{"Authorization": "Bearer " + signUserToken(t, testSecret)})

	assert.Equal(t, 502, rec.Code)
}

func TestGroupPublishReportsPerMemberResults(t *testing.T) {
	publisher := &fakePublisher{failFor: map[string]error{"22": errors.New("connection refused")}}
	resolver := &fakeResolver{ids: []int64{11, 22, 33}}
	s := newTestServer(t, publisher, resolver, &fakeMailer{})

	token := signAPIToken(t, testSecret)
	rec := doRequest(s, http.MethodPost, "/notification/groups/engineering/publish",
		`{"message":"standup in 5"}`,
		map[string]string{"X-API-Authorization": "Bearer " + token})

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "engineering", resolver.gotGroup)
	assert.Equal(t, token, resolver.gotToken)

	body := rec.Body.String()
	assert.Contains(t, body, "Message sent for ID: 11")
	assert.Contains(t, body, "Failed to send message for ID: 22: connection refused")
	assert.Contains(t, body, "Message sent for ID: 33")

	// The failed member must not abort delivery to the remaining members.
	require.Len(t, publisher.envelopes, 2)
	assert.Equal(t, "11", publisher.envelopes[0].ChannelID)
	assert.Equal(t, "33", publisher.envelopes[1].ChannelID)
}

func TestGroupPublishResolverFailure(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("iam unreachable")}
	s := newTestServer(t, &fakePublisher{}, resolver, &fakeMailer{})

	rec := doRequest(s, http.MethodPost, "/notification/groups/engineering/publish",
		`{"message":"hi"}`,
		map[string]string{"X-API-Authorization": "Bearer " + signAPIToken(t, testSecret)})

	assert.Equal(t, 502, rec.Code)
}

func TestSendEmail(t *testing.T) {
	sender := &fakeMailer{}
	s := newTestServer(t, &fakePublisher{}, &fakeResolver{}, sender)

	rec := doRequest(s, http.MethodPost, "/notification/send-email",
		`{"to":"dev@example.com","subject":"Alert","message":"Disk almost full","reply_to":"ops@example.com"}`,
		map[string]string{"X-ISC-API-Authorization": "Bearer " + signServiceToken(t, testSecret)})

	assert.Equal(t, 200, rec.Code)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "dev@example.com", sender.sent[0].To)
	assert.Equal(t, "Alert", sender.sent[0].Subject)
	assert.Equal(t, "Disk almost full", sender.sent[0].Message)
	assert.Equal(t, "ops@example.com", sender.sent[0].ReplyTo)
}

func TestSendEmailValidation(t *testing.T) {
	s := newTestServer(t, &fakePublisher{}, &fakeResolver{}, &fakeMailer{})
	headers := map[string]string{"X-ISC-API-Authorization": "Bearer " + signServiceToken(t, testSecret)}

	tests := []struct {
		name string
		body string
	}{
		{"missing to", `{"subject":"s","message":"m"}`},
		{"missing subject", `{"to":"a@b.c","message":"m"}`},
		{"missing message", `{"to":"a@b.c","subject":"s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/notification/send-email", tt.body, headers)
			assert.Equal(t, 400, rec.Code)
		})
	}
}

func TestSendEmailRequiresServiceToken(t *testing.T) {
	s := newTestServer(t, &fakePublisher{}, &fakeResolver{}, &fakeMailer{})

	rec := doRequest(s, http.MethodPost, "/notification/send-email",
		`{"to":"a@b.c","subject":"s","message":"m"}`,
		map[string]string{"Authorization": "Bearer " + signUserToken(t, testSecret)})

	assert.Equal(t, 401, rec.Code)
}

func TestHealthLiveness(t *testing.T) {
	s := newTestServer(t, &fakePublisher{}, &fakeResolver{}, &fakeMailer{})

	rec := doRequest(s, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHealthReadiness(t *testing.T) {
	publisher := &fakePublisher{}
	s := newTestServer(t, publisher, &fakeResolver{}, &fakeMailer{})

	rec := doRequest(s, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, 200, rec.Code)

	publisher.pingErr = errors.New("broker down")
	rec = doRequest(s, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, 503, rec.Code)
	assert.Contains(t, rec.Body.String(), "broker")
}

func TestCorrelationIDPropagation(t *testing.T) {
	s := newTestServer(t, &fakePublisher{}, &fakeResolver{}, &fakeMailer{})

	rec := doRequest(s, http.MethodGet, "/health/live", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	rec = doRequest(s, http.MethodGet, "/health/live", "", map[string]string{"X-Correlation-ID": "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))
}
