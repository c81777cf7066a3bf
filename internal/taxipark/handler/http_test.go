package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/taxipark/internal/taxipark/cache"
	"github.com/example/taxipark/internal/taxipark/domain"
	"github.com/example/taxipark/internal/taxipark/handler"
	"github.com/example/taxipark/internal/taxipark/repository"
	"github.com/example/taxipark/internal/taxipark/service"
)

const parkJSON = `{
  "drivers": ["D-0", "D-1", "D-2", "D-3", "D-4"],
  "passengers": ["P-0", "P-1", "P-2"],
  "trips": [
    {"driver": "D-0", "passengers": ["P-0", "P-1"], "duration": 12, "cost": 500, "discount": 0.2},
    {"driver": "D-0", "passengers": ["P-0"], "duration": 15, "cost": 400, "discount": 0.1},
    {"driver": "D-1", "passengers": ["P-1"], "duration": 27, "cost": 60},
    {"driver": "D-2", "passengers": ["P-1"], "duration": 5, "cost": 40}
  ]
}`

func newServer(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(repository.NewMemoryRepository(), cache.NewMemoryCache(), nil, domain.SystemClock{}, zap.NewNop())
	return handler.NewHTTP(svc).Router()
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func createPark(t *testing.T, srv http.Handler) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/v1/parks", parkJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ParkID string `json:"park_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ParkID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestParkQueries(t *testing.T) {
	srv := newServer(t)
	id := createPark(t, srv)
	base := "/v1/parks/" + id

	rec := do(t, srv, http.MethodGet, base+"/fake-drivers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"D-3", "D-4"}, decode(t, rec)["drivers"])

	rec = do(t, srv, http.MethodGet, base+"/faithful-passengers?min_trips=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"P-0", "P-1"}, decode(t, rec)["passengers"])

	rec = do(t, srv, http.MethodGet, base+"/frequent-passengers?driver=D-0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"P-0"}, decode(t, rec)["passengers"])

	rec = do(t, srv, http.MethodGet, base+"/smart-passengers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"P-0"}, decode(t, rec)["passengers"])

	rec = do(t, srv, http.MethodGet, base+"/duration-period", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"found":true,"start":10,"end":19}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, base+"/pareto", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"holds":true}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/parks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{id}, decode(t, rec)["parks"])

	rec = do(t, srv, http.MethodGet, base+"/report?min_trips=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode(t, rec)
	require.Equal(t, id, report["park_id"])
	require.Equal(t, float64(4), report["trips"])
	require.Equal(t, []any{"P-0", "P-1"}, report["faithful_passengers"])
	require.Equal(t, true, report["pareto_holds"])
}

func TestEmptyParkHasNoDurationPeriod(t *testing.T) {
	srv := newServer(t)
	rec := do(t, srv, http.MethodPost, "/v1/parks", `{"drivers":["D-0"],"passengers":["P-0"],"trips":[]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ParkID string `json:"park_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(t, srv, http.MethodGet, "/v1/parks/"+created.ParkID+"/duration-period", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"found":false}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/parks/"+created.ParkID+"/pareto", "")
	require.JSONEq(t, `{"holds":false}`, rec.Body.String())
}

func TestRequestErrors(t *testing.T) {
	srv := newServer(t)
	id := createPark(t, srv)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed body", http.MethodPost, "/v1/parks", `{`, http.StatusBadRequest},
		{"trip without passengers", http.MethodPost, "/v1/parks", `{"drivers":["D"],"trips":[{"driver":"D","passengers":[],"duration":3,"cost":1}]}`, http.StatusBadRequest},
		{"negative cost", http.MethodPost, "/v1/parks", `{"drivers":["D"],"trips":[{"driver":"D","passengers":["P"],"duration":3,"cost":-1}]}`, http.StatusBadRequest},
		{"invalid id", http.MethodGet, "/v1/parks/not-a-uuid/pareto", "", http.StatusBadRequest},
		{"unknown park", http.MethodGet, "/v1/parks/" + uuid.NewString() + "/fake-drivers", "", http.StatusNotFound},
		{"negative min trips", http.MethodGet, "/v1/parks/" + id + "/faithful-passengers?min_trips=-1", "", http.StatusBadRequest},
		{"non-numeric min trips", http.MethodGet, "/v1/parks/" + id + "/report?min_trips=many", "", http.StatusBadRequest},
		{"missing driver", http.MethodGet, "/v1/parks/" + id + "/frequent-passengers", "", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}
