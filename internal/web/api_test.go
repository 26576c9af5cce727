package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/db"
	"github.com/vbonduro/sitecheck/internal/domain"
	"github.com/vbonduro/sitecheck/internal/inspection"
	"github.com/vbonduro/sitecheck/internal/metrics"
	"github.com/vbonduro/sitecheck/internal/photostore/local"
	"github.com/vbonduro/sitecheck/internal/service"
	"github.com/vbonduro/sitecheck/internal/store"
	"github.com/vbonduro/sitecheck/internal/web"
)

// minimalJPEG is 512 bytes with the JPEG magic bytes header followed by zeros.
var minimalJPEG = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xFF
	b[1] = 0xD8
	b[2] = 0xFF
	b[3] = 0xE0
	return b
}()

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	photos, err := local.NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)

	m := metrics.New()
	gw := store.NewMemoryStore()
	svc := service.NewInspectionService(service.Deps{
		Catalog:   checklist.Default(),
		Gateway:   gw,
		Saver:     service.NewAsyncSaver(gw, nil, m, 16, logger),
		Photos:    photos,
		PhotoMeta: store.NewPhotoStore(database),
		Metrics:   m,
		Logger:    logger,
	})
	t.Cleanup(svc.Close)

	srv := httptest.NewServer(web.NewServer(svc, m, logger))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const item = "site_ground_subsidence"

func TestChecklist(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/checklist", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	body := decode[struct {
		Categories []checklist.Category `json:"categories"`
		ItemCount  int                  `json:"itemCount"`
	}](t, resp)
	assert.Len(t, body.Categories, 10)
	assert.Equal(t, 101, body.ItemCount)
}

func TestAddEvaluationFlow(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/properties/p1/items/" + item

	resp := do(t, http.MethodPost, base+"/evaluations", map[string]any{"grade": "c", "memo": "crack near gate"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decode[inspection.AddResult](t, resp)
	assert.True(t, added.Applied)
	require.NotNil(t, added.Capture)
	assert.Equal(t, "/properties/p1/items/"+item, added.Capture.ReturnPath)

	resp = do(t, http.MethodPost, base+"/evaluations", map[string]any{"grade": "a"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[inspection.ItemState](t, resp)
	require.Len(t, st.Evaluations, 1)
	assert.Equal(t, "crack near gate", st.Evaluations[0].Memo)

	resp = do(t, http.MethodDelete, base+"/evaluations/0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[struct{ Applied bool }](t, resp).Applied)

	resp = do(t, http.MethodDelete, base+"/evaluations/0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[struct{ Applied bool }](t, resp).Applied)
}

func TestListProperties(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/properties", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[struct{ Properties []domain.InspectionSummary }](t, resp).Properties)

	resp = do(t, http.MethodPost, srv.URL+"/properties/p7/items/"+item+"/evaluations", map[string]any{"grade": "a"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Saves land in the background.
	assert.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/properties")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body struct{ Properties []domain.InspectionSummary }
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		return len(body.Properties) == 1 && body.Properties[0].PropertyID == "p7"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAddEvaluationBadRequests(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/properties/p1/items/" + item

	resp := do(t, http.MethodPost, base+"/evaluations", map[string]any{"grade": "c", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/evaluations", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "grade", decode[struct{ Field string }](t, resp).Field)

	resp = do(t, http.MethodDelete, base+"/evaluations/first", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownItem(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/properties/p1/items/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/properties/p1/items/nope/evaluations", map[string]any{"grade": "c"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[inspection.AddResult](t, resp).Applied)
}

func TestSurveyAndCompletion(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/properties/p1"

	resp := do(t, http.MethodPut, base+"/categories/foundation/survey", map[string]any{"conducted": false, "finalize": true})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/categories/foundation/survey", map[string]any{"conducted": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/categories/foundation/survey", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/completion", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[inspection.CompletionReport](t, resp)
	assert.False(t, report.Complete)
	assert.Contains(t, report.MissingReasons, inspection.MissingReason{Scope: inspection.ScopeCategory, ID: "foundation"})

	resp = do(t, http.MethodGet, base+"/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	progress := decode[inspection.TotalProgress](t, resp)
	assert.Equal(t, 1, progress.SkippedCategories)
}

func TestOptionsGroupsMaintenance(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/properties/p1"

	resp := do(t, http.MethodPut, base+"/items/equipment_drainage_pump_type/options/type", map[string]any{"value": "not_applicable"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/items/equipment_drainage_pump_operation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[inspection.ItemState](t, resp).Excluded)

	resp = do(t, http.MethodDelete, base+"/items/equipment_drainage_pump_type/options/type", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/groups/elevator/existence", map[string]any{"exists": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[struct{ Applied bool }](t, resp).Applied)

	resp = do(t, http.MethodPut, base+"/groups/exterior_finish/finish-materials", map[string]any{"materials": []string{"tile"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/groups/exterior_finish/finish-materials", map[string]any{"materials": []string{"marble"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/maintenance/long_term_repair_plan", map[string]any{"need": "required", "condition": "good"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/maintenance/long_term_repair_plan", map[string]any{"need": "sometimes"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/inspection", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var agg map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agg))
	assert.Equal(t, "p1", agg["propertyId"])
	assert.Contains(t, agg, "groupExistence")
	assert.Contains(t, agg, "finishMaterials")
	assert.Contains(t, agg, "maintenanceStatus")
}

func uploadPhoto(t *testing.T, url string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "defect.jpg")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestPhotoUploadMarksEvaluation(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/properties/p1/items/" + item

	resp := do(t, http.MethodPost, base+"/evaluations", map[string]any{"grade": "b2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	evalID := decode[inspection.AddResult](t, resp).Evaluation.ID

	resp = uploadPhoto(t, base+"/evaluations/"+evalID+"/photo", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = uploadPhoto(t, base+"/evaluations/unknown/photo", minimalJPEG)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = uploadPhoto(t, base+"/evaluations/"+evalID+"/photo", minimalJPEG)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodGet, base, nil)
	st := decode[inspection.ItemState](t, resp)
	require.Len(t, st.Evaluations, 1)
	assert.True(t, st.Evaluations[0].HasPhoto)

	resp = do(t, http.MethodGet, base+"/evaluations/"+evalID+"/photo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, minimalJPEG, got)
}

func TestReportDownload(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/properties/p1/report.xlsx", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "inspection-p1.xlsx")

	wb, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"Summary", "Evaluations", "Outstanding"}, wb.GetSheetList())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	do(t, http.MethodPost, srv.URL+"/properties/p1/items/"+item+"/evaluations", map[string]any{"grade": "b1"})

	resp := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "sitecheck_inspection_evaluations_total"))
	assert.Contains(t, text, `route="/properties/{id}/items/{itemID}/evaluations"`)
}
