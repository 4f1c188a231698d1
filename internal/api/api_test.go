package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mandi-tracker/internal/database"
	"mandi-tracker/internal/models"
	"mandi-tracker/internal/services"
	"mandi-tracker/internal/services/ogd"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	hub := NewHub()
	ingester := services.NewIngester(db, ogd.NewClient("", ogd.DefaultBaseURL), hub)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	SetupRoutes(r.Group("/api/v1"), db, ingester)
	return r, db, hub
}

func seedTomato(t *testing.T, db *gorm.DB) {
	t.Helper()
	rate := models.MandiRate{
		State: "X", District: "Kolar", Market: "Kolar Mandi", Commodity: "Tomato",
		ArrivalDate: "14/08/2026", MinPrice: 90, MaxPrice: 110, ModalPrice: 100,
	}
	if err := db.Create(&rate).Error; err != nil {
		t.Fatalf("seeding rate: %v", err)
	}
}

func doGet(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestMandiRatesRequiresCropAndState(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	for _, path := range []string{
		"/api/v1/market/mandi",
		"/api/v1/market/mandi?crop=Tomato",
		"/api/v1/market/mandi?state=X",
		"/api/v1/market/districts",
		"/api/v1/market/forecast?crop=Tomato",
		"/api/v1/market/mandi/export?state=X",
	} {
		if w := doGet(t, r, path); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", path, w.Code)
		}
	}
}

func TestMandiRatesNoDataSentinel(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := doGet(t, r, "/api/v1/market/mandi?crop=Tomato&state=Nowhere")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (no data is not an error)", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["current_price"] != "N/A" {
		t.Errorf("current_price = %v, want N/A", body["current_price"])
	}
	if !strings.Contains(body["market"].(string), "(No Data)") {
		t.Errorf("market label = %v, want (No Data) suffix", body["market"])
	}
}

func TestMandiRatesWithData(t *testing.T) {
	r, db, _ := setupTestRouter(t)
	seedTomato(t, db)

	w := doGet(t, r, "/api/v1/market/mandi?crop=Tomato&state=X&district=Kolar")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["current_price"] != "₹100" {
		t.Errorf("current_price = %v, want ₹100", body["current_price"])
	}
	if body["price_unit"] != "per quintal" {
		t.Errorf("price_unit = %v", body["price_unit"])
	}
}

func TestDistrictsResponseShape(t *testing.T) {
	r, db, _ := setupTestRouter(t)
	seedTomato(t, db)

	w := doGet(t, r, "/api/v1/market/districts?crop=Tomato&state=X")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Districts []string `json:"districts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Districts) != 1 || body.Districts[0] != "Kolar" {
		t.Errorf("districts = %v, want [Kolar]", body.Districts)
	}
}

func TestForecastInsufficientDataIsEmptyArray(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := doGet(t, r, "/api/v1/market/forecast?crop=Tomato&state=X")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestExportMandiRates(t *testing.T) {
	r, db, _ := setupTestRouter(t)

	t.Run("NoData", func(t *testing.T) {
		w := doGet(t, r, "/api/v1/market/mandi/export?crop=Tomato&state=X")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404 for empty export", w.Code)
		}
	})

	t.Run("WithData", func(t *testing.T) {
		seedTomato(t, db)
		w := doGet(t, r, "/api/v1/market/mandi/export?crop=Tomato&state=X")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
			t.Errorf("Content-Type = %q, want xlsx", ct)
		}
		if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
			t.Errorf("Content-Disposition = %q, want attachment", cd)
		}
		if w.Body.Len() == 0 {
			t.Error("empty workbook body")
		}
	})
}

func TestTriggerFetchAccepted(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/market/fetch?date=15/08/2026", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestMarketOverviewStaticList(t *testing.T) {
	r, _, _ := setupTestRouter(t)

	w := doGet(t, r, "/api/v1/market/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body) == 0 {
		t.Error("expected some landing entries")
	}
}

func TestHubBroadcastsCycleSummaries(t *testing.T) {
	r, _, hub := setupTestRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", wsURL, err)
	}
	defer conn.Close()

	// Registration happens in the server handler; wait for it to land.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sent := services.CycleSummary{Commodities: 21, Processed: 42, Upserted: 40, Deleted: 3}
	hub.PublishCycle(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got services.CycleSummary
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	if got.Processed != sent.Processed || got.Deleted != sent.Deleted {
		t.Errorf("received %+v, want processed %d deleted %d", got, sent.Processed, sent.Deleted)
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	r, _, hub := setupTestRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", wsURL, err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client never dropped")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
