package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/rake220/customer-segmentation/internal/cluster"
	"github.com/rake220/customer-segmentation/internal/events"
	"github.com/rake220/customer-segmentation/internal/query"
	"github.com/rake220/customer-segmentation/internal/segmentation"
	"github.com/rake220/customer-segmentation/internal/storage/models"
	"github.com/rake220/customer-segmentation/internal/storage/sqlite"
	"github.com/rake220/customer-segmentation/internal/store"
)

const twoCustomers = "CustomerID,Gender,Age,Income\n1,M,25,40\n2,F,52,90\n"

func newTestApp() *fiber.App {
	st := store.New()
	hub := events.NewHub(8)
	svc := segmentation.NewService(st, hub, nil, nil, segmentation.Config{
		SegmentColumn:      "Segment",
		CategoricalColumns: []string{"Gender"},
		Cluster:            cluster.DefaultOptions(),
	})

	app := fiber.New()
	RegisterRoutes(app, Handlers{
		System:    NewSystemHandler(st),
		Dataset:   NewDatasetHandler(svc, st),
		Segment:   NewSegmentHandler(svc, SegmentDefaults{Algorithm: "kmeans", Clusters: 3}),
		Query:     NewQueryHandler(query.NewEngine(st, "CustomerID", "Segment")),
		WebSocket: NewWebSocketHandler(hub),
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, body
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte) {
	return do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
}

func post(t *testing.T, app *fiber.App, target string) (int, []byte) {
	return do(t, app, httptest.NewRequest(http.MethodPost, target, nil))
}

func upload(t *testing.T, app *fiber.App, filename, content string) (int, []byte) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write([]byte(content))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return do(t, app, req)
}

func decode(t *testing.T, body []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("invalid JSON %s: %v", body, err)
	}
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	decode(t, body, &resp)
	return resp.Error
}

func TestRootAndHealth(t *testing.T) {
	app := newTestApp()

	if status, _ := get(t, app, "/"); status != fiber.StatusOK {
		t.Errorf("GET / returned %d", status)
	}
	if status, _ := get(t, app, "/health"); status != fiber.StatusOK {
		t.Errorf("GET /health returned %d", status)
	}

	status, body := get(t, app, "/ready")
	if status != fiber.StatusOK {
		t.Fatalf("GET /ready returned %d", status)
	}
	var ready struct {
		DatasetLoaded bool `json:"dataset_loaded"`
	}
	decode(t, body, &ready)
	if ready.DatasetLoaded {
		t.Error("no dataset should be loaded")
	}
}

func TestUpload(t *testing.T) {
	app := newTestApp()

	status, body := upload(t, app, "customers.csv", twoCustomers)
	if status != fiber.StatusOK {
		t.Fatalf("upload returned %d: %s", status, body)
	}
	var resp struct {
		Message string   `json:"message"`
		Columns []string `json:"columns"`
		Rows    int      `json:"rows"`
		Version string   `json:"version"`
	}
	decode(t, body, &resp)
	if len(resp.Columns) != 4 || resp.Columns[0] != "CustomerID" || resp.Rows != 2 || resp.Version == "" {
		t.Errorf("unexpected upload response %+v", resp)
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	app := newTestApp()

	if status, _ := upload(t, app, "customers.txt", twoCustomers); status != fiber.StatusBadRequest {
		t.Errorf("non-CSV upload returned %d", status)
	}
	if status, _ := upload(t, app, "empty.csv", ""); status != fiber.StatusBadRequest {
		t.Errorf("empty CSV upload returned %d", status)
	}
	if status, _ := upload(t, app, "ragged.csv", "a,b\n1,2,3\n"); status != fiber.StatusBadRequest {
		t.Errorf("ragged CSV upload returned %d", status)
	}
	if status, _ := post(t, app, "/upload"); status != fiber.StatusBadRequest {
		t.Errorf("upload without file returned %d", status)
	}
}

func TestCustomerBeforeSegmentation(t *testing.T) {
	app := newTestApp()

	status, body := get(t, app, "/customer/1")
	if status != fiber.StatusBadRequest {
		t.Errorf("lookup without data returned %d", status)
	}
	if msg := errorMessage(t, body); msg != "No data uploaded. Please upload CSV first." {
		t.Errorf("unexpected message %q", msg)
	}

	upload(t, app, "customers.csv", twoCustomers)

	status, body = get(t, app, "/customer/1")
	if status != fiber.StatusOK {
		t.Fatalf("GET /customer/1 returned %d: %s", status, body)
	}
	want := `{"CustomerID":1,"Gender":"M","Age":25,"Income":40}`
	if string(body) != want {
		t.Errorf("got %s, want %s", body, want)
	}

	if status, _ := get(t, app, "/customer/99"); status != fiber.StatusNotFound {
		t.Errorf("unknown customer returned %d", status)
	}
}

func TestTwoCustomerScenario(t *testing.T) {
	app := newTestApp()
	upload(t, app, "customers.csv", twoCustomers)

	status, body := post(t, app, "/segment?features=Age,Income&algorithm=kmeans&n_clusters=2")
	if status != fiber.StatusOK {
		t.Fatalf("segment returned %d: %s", status, body)
	}
	var resp struct {
		Message        string                     `json:"message"`
		SegmentationID string                     `json:"segmentation_id"`
		Segments       []int                      `json:"segments"`
		NumPoints      int                        `json:"num_points"`
		DroppedRows    int                        `json:"dropped_rows"`
		Summaries      map[string]json.RawMessage `json:"summaries"`
	}
	decode(t, body, &resp)
	if len(resp.Segments) != 2 || resp.Segments[0] != 0 || resp.Segments[1] != 1 {
		t.Errorf("expected segments [0 1], got %v", resp.Segments)
	}
	if resp.NumPoints != 2 || resp.DroppedRows != 0 || len(resp.Summaries) != 2 {
		t.Errorf("unexpected response %s", body)
	}
	if resp.Message != "Data segmented using kmeans with features [Age Income]." {
		t.Errorf("unexpected message %q", resp.Message)
	}

	status, body = get(t, app, "/customer/1")
	if status != fiber.StatusOK {
		t.Fatalf("GET /customer/1 returned %d", status)
	}
	var customer map[string]interface{}
	decode(t, body, &customer)
	if _, ok := customer["Segment"]; !ok {
		t.Errorf("customer should carry Segment: %s", body)
	}

	for _, id := range []string{"0", "1"} {
		status, body := get(t, app, "/segment/"+id)
		if status != fiber.StatusOK {
			t.Fatalf("GET /segment/%s returned %d", id, status)
		}
		var records []map[string]interface{}
		decode(t, body, &records)
		if len(records) != 1 {
			t.Errorf("segment %s has %d customers, want 1", id, len(records))
		}
	}

	if status, _ := get(t, app, "/segment/7"); status != fiber.StatusNotFound {
		t.Errorf("empty segment returned %d", status)
	}
	if status, _ := get(t, app, "/segment/abc"); status != fiber.StatusBadRequest {
		t.Errorf("non-integer segment returned %d", status)
	}

	status, body = get(t, app, "/segments")
	if status != fiber.StatusOK {
		t.Fatalf("GET /segments returned %d", status)
	}
	var overview query.SegmentOverview
	decode(t, body, &overview)
	if overview.SegmentationID != resp.SegmentationID || len(overview.Segments) != 2 {
		t.Errorf("unexpected overview %s", body)
	}
}

func TestSegmentErrors(t *testing.T) {
	app := newTestApp()

	status, body := post(t, app, "/segment?features=Age&n_clusters=2")
	if status != fiber.StatusBadRequest {
		t.Errorf("segment without data returned %d", status)
	}
	if msg := errorMessage(t, body); msg != "No data uploaded. Please upload CSV first." {
		t.Errorf("unexpected message %q", msg)
	}

	upload(t, app, "customers.csv", twoCustomers)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown column", "/segment?features=Age,Height&n_clusters=2", fiber.StatusBadRequest},
		{"unknown algorithm", "/segment?features=Age&algorithm=dbscan&n_clusters=2", fiber.StatusBadRequest},
		{"malformed n_clusters", "/segment?features=Age&n_clusters=two", fiber.StatusBadRequest},
		{"default clusters exceed rows", "/segment?features=Age", fiber.StatusInternalServerError},
		{"agglomerative", "/segment?features=Age,Gender&algorithm=agglomerative&n_clusters=2&linkage=average", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status, body := post(t, app, tt.target); status != tt.status {
				t.Errorf("got %d, want %d: %s", status, tt.status, body)
			}
		})
	}

	_, body = post(t, app, "/segment?features=Age,Height&n_clusters=2")
	if msg := errorMessage(t, body); msg != "Columns not found in data: Height" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestReuploadClearsSegmentation(t *testing.T) {
	app := newTestApp()
	upload(t, app, "customers.csv", twoCustomers)
	if status, body := post(t, app, "/segment?features=Age&n_clusters=2"); status != fiber.StatusOK {
		t.Fatalf("segment returned %d: %s", status, body)
	}

	upload(t, app, "customers.csv", "CustomerID,Age\n5,33\n")

	if status, _ := get(t, app, "/segment/0"); status != fiber.StatusBadRequest {
		t.Errorf("segment lookup after re-upload returned %d", status)
	}
	if status, _ := get(t, app, "/download"); status != fiber.StatusBadRequest {
		t.Errorf("download after re-upload returned %d", status)
	}
	if status, _ := get(t, app, "/customer/5"); status != fiber.StatusOK {
		t.Errorf("new customer lookup returned %d", status)
	}
}

func TestDownload(t *testing.T) {
	app := newTestApp()
	if status, _ := get(t, app, "/download"); status != fiber.StatusBadRequest {
		t.Errorf("download before segmentation returned %d", status)
	}

	upload(t, app, "customers.csv", twoCustomers)
	post(t, app, "/segment?features=Age,Income&n_clusters=2")

	status, body := get(t, app, "/download")
	if status != fiber.StatusOK {
		t.Fatalf("download returned %d: %s", status, body)
	}
	var resp struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	decode(t, body, &resp)
	if resp.Filename != "segmented_customers.csv" {
		t.Errorf("unexpected filename %q", resp.Filename)
	}
	if !bytes.HasPrefix([]byte(resp.Content), []byte("CustomerID,Gender,Age,Income,Segment\n")) {
		t.Errorf("unexpected content %q", resp.Content)
	}

	resp2, err := app.Test(httptest.NewRequest(http.MethodGet, "/download?format=xlsx", nil), -1)
	if err != nil {
		t.Fatalf("xlsx download failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != fiber.StatusOK {
		t.Fatalf("xlsx download returned %d", resp2.StatusCode)
	}
	if ct := resp2.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected content type %q", ct)
	}

	if status, _ := get(t, app, "/download?format=pdf"); status != fiber.StatusBadRequest {
		t.Errorf("unknown format returned %d", status)
	}
}

func TestSegmentChart(t *testing.T) {
	app := newTestApp()
	if status, _ := get(t, app, "/segments/chart?x=Age&y=Income"); status != fiber.StatusBadRequest {
		t.Errorf("chart before segmentation returned %d", status)
	}

	upload(t, app, "customers.csv", twoCustomers)
	post(t, app, "/segment?features=Age,Income&n_clusters=2")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/segments/chart?x=Age&y=Income&size=3", nil), -1)
	if err != nil {
		t.Fatalf("chart request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("chart returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("unexpected content type %q", ct)
	}

	status, body := get(t, app, "/segments/chart?x=Gender&y=Income")
	if status != fiber.StatusBadRequest {
		t.Errorf("categorical axis returned %d", status)
	}
	if msg := errorMessage(t, body); msg != "Column 'Gender' is not numeric" {
		t.Errorf("unexpected error %q", msg)
	}
	if status, _ := get(t, app, "/segments/chart?x=Age&y=Income&size=big"); status != fiber.StatusBadRequest {
		t.Errorf("bad size returned %d", status)
	}
}

func TestEventsRequiresUpgrade(t *testing.T) {
	app := newTestApp()
	if status, _ := get(t, app, "/ws/events"); status != fiber.StatusUpgradeRequired {
		t.Errorf("plain GET /ws/events returned %d", status)
	}
}

func TestHistory(t *testing.T) {
	db, err := sqlite.NewClient(":memory:")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	st := store.New()
	svc := segmentation.NewService(st, nil, nil, db, segmentation.Config{Cluster: cluster.DefaultOptions()})
	app := fiber.New()
	RegisterRoutes(app, Handlers{
		System:  NewSystemHandler(st),
		Dataset: NewDatasetHandler(svc, st),
		Segment: NewSegmentHandler(svc, SegmentDefaults{}),
		Query:   NewQueryHandler(query.NewEngine(st, "", "")),
		History: NewHistoryHandler(db),
	})

	upload(t, app, "customers.csv", twoCustomers)
	post(t, app, "/segment?features=Age&n_clusters=2")
	post(t, app, "/segment?features=Age&n_clusters=9")

	status, body := get(t, app, "/history?limit=10")
	if status != fiber.StatusOK {
		t.Fatalf("GET /history returned %d: %s", status, body)
	}
	var resp struct {
		Runs    []models.RunRecord    `json:"runs"`
		Uploads []models.UploadRecord `json:"uploads"`
	}
	decode(t, body, &resp)
	if len(resp.Uploads) != 1 || resp.Uploads[0].Source != "customers.csv" {
		t.Errorf("unexpected uploads %+v", resp.Uploads)
	}
	if len(resp.Runs) != 2 || resp.Runs[0].Status != "computation_failure" || resp.Runs[1].Status != "success" {
		t.Errorf("unexpected runs %+v", resp.Runs)
	}

	if status, _ := get(t, app, "/history?limit=0"); status != fiber.StatusBadRequest {
		t.Errorf("limit=0 returned %d", status)
	}
}
