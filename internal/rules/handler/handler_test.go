package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseiq/internal/rules"
	dErrors "licenseiq/pkg/domain-errors"
	authmw "licenseiq/pkg/platform/middleware/auth"
	"licenseiq/pkg/testutil"
)

type stubService struct {
	submitted     []rules.Rule
	transitions   []rules.TransitionRequest
	lastTenantID  string
	active        []rules.Rule
	submitErr     error
	transitionErr error
	listActiveErr error
}

func (s *stubService) Submit(_ context.Context, rule rules.Rule) error {
	s.submitted = append(s.submitted, rule)
	return s.submitErr
}

func (s *stubService) Transition(_ context.Context, tenantID string, req rules.TransitionRequest) error {
	s.lastTenantID = tenantID
	s.transitions = append(s.transitions, req)
	return s.transitionErr
}

func (s *stubService) ListActive(_ context.Context, tenantID string, _ time.Time) ([]rules.Rule, error) {
	s.lastTenantID = tenantID
	return s.active, s.listActiveErr
}

type stubValidator struct{}

func (stubValidator) ValidateTenantToken(token string) (*authmw.JWTClaims, error) {
	if token != "good-token" {
		return nil, errors.New("bad token")
	}
	return &authmw.JWTClaims{TenantID: "acme", ActorID: "alice"}, nil
}

func newTestRouter(service *stubService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(service, logger, stubValidator{}).Register(r)
	return r
}

func samplePayload() RulePayload {
	return RulePayload{
		RuleID:     "eccn-3a-block",
		Version:    1,
		Action:     "BLOCK",
		ReasonCode: "ECCN_CONTROLLED",
		Citation:   "EAR 742.4(a)",
		Predicate:  &rules.Expr{Op: rules.OpPrefix, Field: "product.eccn", Value: "3A"},
	}
}

func TestHandleSubmit_CreatesDraft(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(service)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/rules", SubmitRuleRequest{RulePayload: samplePayload()})
	rec := testutil.DoRequest(router, testutil.WithBearer(req, "good-token"))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, service.submitted, 1)
	assert.Equal(t, "acme", service.submitted[0].TenantID)
	assert.Equal(t, rules.StateDraft, service.submitted[0].State, "submitted rules always enter as drafts")

	resp := testutil.UnmarshalResponse[RuleResponse](t, rec)
	assert.Equal(t, "eccn-3a-block", resp.RuleID)
	assert.Equal(t, "draft", resp.State)
}

func TestHandleSubmit_IgnoresCallerSuppliedState(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(service)

	body := `{"rule_id":"r1","version":1,"action":"BLOCK","reason_code":"X","state":"production","predicate":{"op":"eq","field":"order.ship_to_country","value":"IR"}}`
	req := testutil.NewRawJSONRequest(http.MethodPost, "/rules", body)
	rec := testutil.DoRequest(router, testutil.WithBearer(req, "good-token"))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, service.submitted, 1)
	assert.Equal(t, rules.StateDraft, service.submitted[0].State)
}

func TestHandleSubmit_MissingRuleID(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(service)

	payload := samplePayload()
	payload.RuleID = ""
	req := testutil.NewJSONRequest(t, http.MethodPost, "/rules", SubmitRuleRequest{RulePayload: payload})
	rec := testutil.DoRequest(router, testutil.WithBearer(req, "good-token"))

	testutil.AssertErrorCode(t, rec, http.StatusBadRequest, string(dErrors.CodeValidation))
	assert.Empty(t, service.submitted)
}

func TestHandleSubmit_ServiceValidationError(t *testing.T) {
	service := &stubService{
		submitErr: dErrors.New(dErrors.CodeValidation, "invalid rule").WithDetails("predicate: nil expression"),
	}
	router := newTestRouter(service)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/rules", SubmitRuleRequest{RulePayload: samplePayload()})
	rec := testutil.DoRequest(router, testutil.WithBearer(req, "good-token"))

	testutil.AssertErrorCode(t, rec, http.StatusBadRequest, string(dErrors.CodeValidation))
	assert.Contains(t, testutil.UnmarshalError(t, rec).Details, "predicate: nil expression")
}

func TestHandleListActive(t *testing.T) {
	payload := samplePayload()
	rule := payload.ToRule("acme")
	rule.State = rules.StateProduction
	service := &stubService{active: []rules.Rule{rule}}
	router := newTestRouter(service)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/rules", nil)
	rec := testutil.DoRequest(router, testutil.WithBearer(req, "good-token"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", service.lastTenantID)

	resp := testutil.UnmarshalResponse[ListRulesResponse](t, rec)
	require.Len(t, resp.Rules, 1)
	assert.Equal(t, "production", resp.Rules[0].State)
}

func TestHandleTransition(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(service)

	body := TransitionRuleRequest{
		Target: "shadow",
		Approvals: []ApprovalPayload{
			{ApproverID: "alice"},
			{ApproverID: "bob"},
		},
	}
	req := testutil.NewJSONRequest(t, http.MethodPost, "/rules/eccn-3a-block/versions/2/transition", body)
	rec := testutil.DoRequest(router, testutil.WithBearer(req, "good-token"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, service.transitions, 1)
	transition := service.transitions[0]
	assert.Equal(t, "eccn-3a-block", transition.RuleID)
	assert.Equal(t, 2, transition.Version)
	assert.Equal(t, rules.StateShadow, transition.Target)
	require.Len(t, transition.Approvals, 2)

	resp := testutil.UnmarshalResponse[TransitionResponse](t, rec)
	assert.Equal(t, "shadow", resp.State)
}

func TestHandleTransition_InvalidVersion(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(service)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/rules/r1/versions/two/transition",
		TransitionRuleRequest{Target: "shadow"})
	rec := testutil.DoRequest(router, testutil.WithBearer(req, "good-token"))

	testutil.AssertErrorCode(t, rec, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	assert.Empty(t, service.transitions)
}

func TestHandleTransition_LifecycleConflict(t *testing.T) {
	service := &stubService{
		transitionErr: dErrors.New(dErrors.CodeRuleConflict, "transition retired -> shadow not allowed"),
	}
	router := newTestRouter(service)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/rules/r1/versions/1/transition",
		TransitionRuleRequest{Target: "shadow"})
	rec := testutil.DoRequest(router, testutil.WithBearer(req, "good-token"))

	testutil.AssertErrorCode(t, rec, http.StatusConflict, string(dErrors.CodeRuleConflict))
}

func TestRoutes_RequireAuth(t *testing.T) {
	router := newTestRouter(&stubService{})

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/rules"},
		{http.MethodGet, "/rules"},
		{http.MethodPost, "/rules/r1/versions/1/transition"},
	} {
		rec := testutil.DoRequest(router, testutil.NewRawJSONRequest(tc.method, tc.path, "{}"))
		testutil.AssertErrorCode(t, rec, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	}
}
