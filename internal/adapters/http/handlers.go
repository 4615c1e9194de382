package http

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routegate/internal/core/domain"
	"github.com/samirrijal/routegate/internal/core/usecases"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type routeQuery struct {
	Destination string `query:"destination"`
	Preference  string `query:"preference" validate:"max=32"`
	TestIP      string `query:"test_ip" validate:"max=64"`
}

// RouteHandler aggregates recommendations for a destination.
// GET /api/route?destination=Tokyo&preference=fastest&test_ip=8.8.8.8
func RouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q routeQuery
		if err := c.QueryParser(&q); err != nil {
			return errBadRequest(c, "invalid query parameters")
		}
		if err := validate.Struct(q); err != nil {
			return errBadRequest(c, "query parameter too long")
		}

		res, err := deps.Gateway.GetRouteRecommendations(c.UserContext(), usecases.RouteQuery{
			Destination: q.Destination,
			Preference:  domain.Preference(strings.TrimSpace(q.Preference)),
			IP:          strings.TrimSpace(q.TestIP),
		})
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

// LocationHandler resolves the caller (or ?ip=) to a location. The status
// code signals whether the default location was served because of a failure.
// GET /location?ip=8.8.8.8
func LocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.Query("ip")
		if err := validate.Var(ip, "max=64"); err != nil {
			return errBadRequest(c, "ip parameter too long")
		}

		res := deps.Location.Lookup(c.UserContext(), ip)
		return c.Status(res.Status).JSON(res.Report)
	}
}

type recommendationsQuery struct {
	OriginLat  string `query:"origin_lat" validate:"required"`
	OriginLon  string `query:"origin_lon" validate:"required"`
	DestLat    string `query:"dest_lat" validate:"required"`
	DestLon    string `query:"dest_lon" validate:"required"`
	Preference string `query:"preference"`
}

// RecommendationsHandler synthesises transport options between two coordinates.
// GET /recommendations?origin_lat=..&origin_lon=..&dest_lat=..&dest_lon=..&preference=cheapest
func RecommendationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q recommendationsQuery
		if err := c.QueryParser(&q); err != nil {
			return errBadRequest(c, "Invalid coordinate format")
		}
		if err := validate.Struct(q); err != nil {
			return errBadRequest(c, "Missing origin or destination coordinates")
		}

		var coords [4]float64
		for i, raw := range []string{q.OriginLat, q.OriginLon, q.DestLat, q.DestLon} {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return errBadRequest(c, "Invalid coordinate format")
			}
			coords[i] = v
		}

		pref := domain.Preference(q.Preference)
		if pref == "" {
			pref = domain.DefaultPreference
		}

		recs := deps.Recommender.Recommend(domain.RecommendationRequest{
			Origin:      domain.GeoPoint{Latitude: coords[0], Longitude: coords[1]},
			Destination: domain.GeoPoint{Latitude: coords[2], Longitude: coords[3]},
			Preference:  pref,
		})
		return c.JSON(fiber.Map{"recommendations": recs})
	}
}
