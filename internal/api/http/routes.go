package httpapi

import (
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/radar-imagery/internal/radar"
)

// ImagePrefix is the URL path artifacts are served under.
const ImagePrefix = "/static/radar"

var validate = validator.New()

// StatusReader is the read side of the status store.
type StatusReader interface {
	Status() radar.GenerationStatus
	Result() radar.CycleResult
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, status StatusReader, stations []radar.StationConfig) {
	app.Get("/status", func(c *fiber.Ctx) error {
		st := status.Status()
		updated := ""
		if !st.LastUpdated.IsZero() {
			updated = st.LastUpdated.UTC().Format(radar.StatusLayout)
		}
		return c.JSON(statusResponse{Status: st.String(), LastUpdated: updated})
	})

	app.Get("/recent-images", func(c *fiber.Ctx) error {
		res := status.Result()
		images := make([]recentImage, 0, len(res.Artifacts))
		for _, a := range res.Artifacts {
			images = append(images, recentImage{
				Station:   a.Station,
				Image:     imageURL(a),
				Timestamp: a.Stamp(),
			})
		}
		return c.JSON(images)
	})

	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		res := status.Result()
		out := make([]stationView, 0, len(stations))
		for _, st := range stations {
			out = append(out, newStationView(st, res))
		}
		return c.JSON(out)
	})

	v1.Get("/stations/:id", func(c *fiber.Ctx) error {
		id := strings.ToUpper(c.Params("id"))
		if err := validate.Var(id, "required,len=4,alphanum"); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "station id must be a four-character code")
		}

		for _, st := range stations {
			if st.ID == id {
				return c.JSON(newStationView(st, status.Result()))
			}
		}
		return fiber.NewError(fiber.StatusNotFound, "unknown station "+id)
	})
}

type statusResponse struct {
	Status      string `json:"status"`
	LastUpdated string `json:"last_updated"`
}

type recentImage struct {
	Station   string `json:"station"`
	Image     string `json:"image"`
	Timestamp string `json:"timestamp"`
}

// stationView is a configured station plus its current artifact, if any.
type stationView struct {
	ID        string             `json:"id"`
	Lat       float64            `json:"lat"`
	Lon       float64            `json:"lon"`
	Bounds    radar.BoundingBox  `json:"bounds"`
	ImageURL  string             `json:"image_url"`
	Timestamp string             `json:"timestamp,omitempty"`
	Extent    *radar.BoundingBox `json:"image_bounds,omitempty"`
}

func newStationView(st radar.StationConfig, res radar.CycleResult) stationView {
	v := stationView{ID: st.ID, Lat: st.Lat, Lon: st.Lon, Bounds: st.Bounds}
	if a, ok := res.Lookup(st.ID); ok {
		v.ImageURL = imageURL(a)
		v.Timestamp = a.Stamp()
		extent := a.Bounds
		v.Extent = &extent
	}
	return v
}

func imageURL(a radar.RenderedArtifact) string {
	return ImagePrefix + "/" + filepath.Base(a.ImagePath)
}
