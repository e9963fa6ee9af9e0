package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dlas/internal/domain"
	"dlas/internal/middleware"
	"dlas/pkg/logger"
	"dlas/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSuspensionStore struct {
	mock.Mock
}

func (m *MockSuspensionStore) Create(ctx context.Context, suspension *domain.Suspension) error {
	args := m.Called(ctx, suspension)
	return args.Error(0)
}

func (m *MockSuspensionStore) ByPerson(ctx context.Context, personID uuid.UUID) ([]*domain.Suspension, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Suspension), args.Error(1)
}

func suspensionsRouter(store SuspensionStore) *mux.Router {
	h := NewSuspensionsHandler(store, validator.New(), logger.NewNop())
	r := mux.NewRouter()
	r.HandleFunc("/persons/{person_id}/suspensions", h.Create).Methods("POST")
	r.HandleFunc("/persons/{person_id}/suspensions", h.ListByPerson).Methods("GET")
	return r
}

func asOfficer(r *http.Request, role string) *http.Request {
	return r.WithContext(middleware.ContextWithOfficer(r.Context(), uuid.New(), "officer.test", role))
}

func TestCreateSuspension_SupervisorCreates(t *testing.T) {
	store := new(MockSuspensionStore)
	personID := uuid.New()

	var created *domain.Suspension
	store.On("Create", mock.Anything, mock.AnythingOfType("*domain.Suspension")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Suspension)
		}).
		Return(nil)

	body, _ := json.Marshal(map[string]interface{}{
		"reason":     "Driving under the influence",
		"start_date": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	req := asOfficer(httptest.NewRequest("POST", "/persons/"+personID.String()+"/suspensions", bytes.NewReader(body)), "SUPERVISOR")
	rec := httptest.NewRecorder()
	suspensionsRouter(store).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	assert.Equal(t, personID, created.PersonID)
	assert.Equal(t, "Driving under the influence", created.Reason)
	assert.Nil(t, created.EndDate)

	var resp domain.Suspension
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, personID, resp.PersonID)
}

func TestCreateSuspension_ClerkForbidden(t *testing.T) {
	store := new(MockSuspensionStore)

	body, _ := json.Marshal(map[string]interface{}{
		"reason":     "Driving under the influence",
		"start_date": time.Now().UTC(),
	})
	req := asOfficer(httptest.NewRequest("POST", "/persons/"+uuid.NewString()+"/suspensions", bytes.NewReader(body)), "CLERK")
	rec := httptest.NewRecorder()
	suspensionsRouter(store).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateSuspension_EndBeforeStart(t *testing.T) {
	store := new(MockSuspensionStore)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-24 * time.Hour)
	body, _ := json.Marshal(map[string]interface{}{
		"reason":     "Medical review pending",
		"start_date": start,
		"end_date":   end,
	})
	req := asOfficer(httptest.NewRequest("POST", "/persons/"+uuid.NewString()+"/suspensions", bytes.NewReader(body)), "SUPERVISOR")
	rec := httptest.NewRecorder()
	suspensionsRouter(store).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateSuspension_MissingReason(t *testing.T) {
	store := new(MockSuspensionStore)

	body, _ := json.Marshal(map[string]interface{}{
		"start_date": time.Now().UTC(),
	})
	req := asOfficer(httptest.NewRequest("POST", "/persons/"+uuid.NewString()+"/suspensions", bytes.NewReader(body)), "SUPERVISOR")
	rec := httptest.NewRecorder()
	suspensionsRouter(store).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "validation_errors")
}

func TestListSuspensions_ByPerson(t *testing.T) {
	store := new(MockSuspensionStore)
	personID := uuid.New()
	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store.On("ByPerson", mock.Anything, personID).Return([]*domain.Suspension{
		{
			ID:        uuid.New(),
			PersonID:  personID,
			Reason:    "Driving under the influence",
			StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   &until,
		},
	}, nil)

	req := asOfficer(httptest.NewRequest("GET", "/persons/"+personID.String()+"/suspensions", nil), "CLERK")
	rec := httptest.NewRecorder()
	suspensionsRouter(store).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Suspensions []*domain.Suspension `json:"suspensions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Suspensions, 1)
	assert.Equal(t, "Driving under the influence", resp.Suspensions[0].Reason)
}
