package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/radar-imagery/internal/radar"
	"github.com/i474232898/radar-imagery/internal/store"
)

var cycle = time.Date(2024, 5, 1, 13, 42, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*fiber.App, *store.StatusStore) {
	t.Helper()
	app := fiber.New()
	status := store.NewStatusStore()
	RegisterRoutes(app, status, radar.DefaultStations()[:3])
	return app, status
}

func getJSON(t *testing.T, app *fiber.App, path string, wantCode int, out any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantCode {
		t.Fatalf("%s: expected status %d, got %d", path, wantCode, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	app, status := newTestApp(t)

	var got map[string]string
	getJSON(t, app, "/status", http.StatusOK, &got)
	if got["status"] != "Idle" || got["last_updated"] != "" {
		t.Fatalf("unexpected initial status %v", got)
	}

	status.SetStatus(radar.GenerationStatus{State: radar.StateError, Message: "archive unavailable", LastUpdated: cycle})
	getJSON(t, app, "/status", http.StatusOK, &got)
	if got["status"] != "Error: archive unavailable" || got["last_updated"] != "2024-05-01 13:42:00" {
		t.Fatalf("unexpected status %v", got)
	}
}

func TestRecentImagesEmpty(t *testing.T) {
	app, _ := newTestApp(t)

	var got []recentImage
	getJSON(t, app, "/recent-images", http.StatusOK, &got)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty list, got %v", got)
	}
}

func TestRecentImagesFollowsPublishedOrder(t *testing.T) {
	app, status := newTestApp(t)
	status.Publish(radar.CycleResult{ID: "c1", Artifacts: []radar.RenderedArtifact{
		{Station: "KCCX", CycleTime: cycle, ImagePath: "/data/radar/KCCX_Reflectivity_2024050113.png"},
		{Station: "KLWX", CycleTime: cycle.Add(-time.Hour), ImagePath: "/data/radar/KLWX_Reflectivity_2024050112.png"},
	}})

	var got []recentImage
	getJSON(t, app, "/recent-images", http.StatusOK, &got)

	want := []recentImage{
		{Station: "KCCX", Image: "/static/radar/KCCX_Reflectivity_2024050113.png", Timestamp: "2024050113"},
		{Station: "KLWX", Image: "/static/radar/KLWX_Reflectivity_2024050112.png", Timestamp: "2024050112"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d images, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("image %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestStationsEndpoint(t *testing.T) {
	app, status := newTestApp(t)
	extent := radar.BoundingBox{MinLat: 36, MaxLat: 42, MinLon: -81, MaxLon: -74}
	status.Publish(radar.CycleResult{Artifacts: []radar.RenderedArtifact{
		{Station: "KLWX", CycleTime: cycle, ImagePath: "out/KLWX_Reflectivity_2024050113.png", Bounds: extent},
	}})

	var list []stationView
	getJSON(t, app, "/api/v1/stations", http.StatusOK, &list)
	if len(list) != 3 || list[0].ID != "KLWX" {
		t.Fatalf("unexpected station list %+v", list)
	}
	if list[0].ImageURL != "/static/radar/KLWX_Reflectivity_2024050113.png" || list[0].Extent == nil || *list[0].Extent != extent {
		t.Fatalf("KLWX should expose its artifact, got %+v", list[0])
	}
	if list[1].ImageURL != "" || list[1].Extent != nil {
		t.Fatalf("KCCX has no artifact yet, got %+v", list[1])
	}

	var one stationView
	getJSON(t, app, "/api/v1/stations/klwx", http.StatusOK, &one)
	if one.ID != "KLWX" || one.Timestamp != "2024050113" {
		t.Fatalf("unexpected station %+v", one)
	}
}

func TestStationLookupErrors(t *testing.T) {
	app, _ := newTestApp(t)

	getJSON(t, app, "/api/v1/stations/KL-X", http.StatusBadRequest, nil)
	getJSON(t, app, "/api/v1/stations/TOOLONG", http.StatusBadRequest, nil)
	getJSON(t, app, "/api/v1/stations/KOKX", http.StatusNotFound, nil)
}
