package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/firmasegura/certifications-backend/pkg/enums"
	pkgerrors "github.com/firmasegura/certifications-backend/pkg/errors"
)

type rejectBody struct {
	Reason string `json:"reason" validate:"required,max=10"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func requireValidation(t *testing.T, err error) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	return typed
}

func TestDecodeJSONBody(t *testing.T) {
	var body rejectBody
	require.NoError(t, DecodeJSONBody(jsonRequest(`{"reason":"blurry"}`), &body))
	require.Equal(t, "blurry", body.Reason)

	cases := map[string]string{
		"empty":         ``,
		"syntax":        `{"reason":`,
		"unknown field": `{"reason":"x","extra":1}`,
		"wrong type":    `{"reason":5}`,
		"trailing data": `{"reason":"x"} {"reason":"y"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var dest rejectBody
			requireValidation(t, DecodeJSONBody(jsonRequest(raw), &dest))
		})
	}
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	var body rejectBody
	typed := requireValidation(t, DecodeJSONBody(jsonRequest(`{"reason":"this is far too long"}`), &body))
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be at most 10 characters", details["reason"])

	typed = requireValidation(t, DecodeJSONBody(jsonRequest(`{}`), &body))
	details, _ = typed.Details().(map[string]string)
	require.Equal(t, "is required", details["reason"])
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	raw := `{"reason":"` + strings.Repeat("a", MaxJSONBodyBytes) + `"}`
	var body rejectBody
	typed := requireValidation(t, DecodeJSON(jsonRequest(raw), &body))
	require.Equal(t, "request body too large", typed.Message())
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 25, v)

	v, err = ParseQueryInt(req, "missing", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, v)

	_, err = ParseQueryInt(req, "bad", 20, 1, 100)
	requireValidation(t, err)
	_, err = ParseQueryInt(req, "big", 20, 1, 100)
	requireValidation(t, err)
}

func TestParseQueryFilters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?status=PENDING&applicationType=natural_person", nil)

	status, err := ParseQueryStatus(req)
	require.NoError(t, err)
	require.Equal(t, enums.CertificationStatusPending, *status)

	appType, err := ParseQueryApplicationType(req)
	require.NoError(t, err)
	require.Equal(t, enums.ApplicationTypeNaturalPerson, *appType)

	owner, err := ParseQueryUUID(req, "ownerId")
	require.NoError(t, err)
	require.Nil(t, owner)

	_, err = ParseQueryStatus(httptest.NewRequest(http.MethodGet, "/?status=archived", nil))
	requireValidation(t, err)
}

func TestParseURLParams(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "not-a-uuid")
	rctx.URLParams.Add("slot", string(enums.SlotIdentificationSelfie))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	_, err := ParseUUIDParam(req, "id")
	requireValidation(t, err)

	slot, err := ParseSlotParam(req)
	require.NoError(t, err)
	require.Equal(t, enums.SlotIdentificationSelfie, slot)
}
