package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/opd-frontdesk/internal/docstore"
	"github.com/wolfman30/opd-frontdesk/internal/doctors"
)

type fixedDoctors []doctors.Doctor

func (f fixedDoctors) Doctors() []doctors.Doctor { return f }

type failingCreator struct{}

func (failingCreator) Create(context.Context, doctors.CreateRequest) (doctors.Doctor, error) {
	return doctors.Doctor{}, errors.New("doctors: write d1: connection refused")
}

func TestDoctorsHandler_Create(t *testing.T) {
	store := docstore.NewMemoryStore()
	h := NewDoctorsHandler(doctors.NewService(store, nil), fixedDoctors{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/doctors", strings.NewReader(`{"name":"Dr. Rao","charges":"450","type":"OPD"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp CreateDoctorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Doctor added successfully", resp.Message)
	assert.Equal(t, "Dr. Rao", resp.Doctor.Name)
	assert.Equal(t, 450.0, resp.Doctor.Charges)
	assert.NotEmpty(t, resp.Doctor.ID)

	stored, err := store.Get(context.Background(), docstore.Join(doctors.Collection, resp.Doctor.ID))
	require.NoError(t, err)
	assert.Contains(t, string(stored), `"name":"Dr. Rao"`)
}

func TestDoctorsHandler_CreateRejectsInvalid(t *testing.T) {
	h := NewDoctorsHandler(doctors.NewService(docstore.NewMemoryStore(), nil), fixedDoctors{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/doctors", strings.NewReader(`{"name":"Dr. Rao","charges":-1,"type":"OPD"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "charges must be a positive number")
}

func TestDoctorsHandler_CreateBadJSON(t *testing.T) {
	h := NewDoctorsHandler(failingCreator{}, fixedDoctors{}, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/doctors", strings.NewReader(`{"name":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDoctorsHandler_CreateStoreFailure(t *testing.T) {
	h := NewDoctorsHandler(failingCreator{}, fixedDoctors{}, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/doctors", strings.NewReader(`{"name":"Dr. Rao","charges":450,"type":"OPD"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDoctorsHandler_List(t *testing.T) {
	roster := fixedDoctors{{ID: "doc-1", Name: "Dr. Anil Sharma", Charges: 500, Type: doctors.TypeOPD}}
	h := NewDoctorsHandler(failingCreator{}, roster, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/doctors", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Doctors []doctors.Doctor `json:"doctors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Doctors, 1)
	assert.Equal(t, "doc-1", resp.Doctors[0].ID)
}

func TestDoctorsHandler_ListEmpty(t *testing.T) {
	h := NewDoctorsHandler(failingCreator{}, fixedDoctors(nil), nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/doctors", nil))
	assert.JSONEq(t, `{"doctors":[]}`, rec.Body.String())
}
