package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/routegate/internal/core/domain"
	"github.com/samirrijal/routegate/internal/core/usecases"
)

// graphQLError exposes the error kind and HTTP status as GraphQL extensions.
type graphQLError struct {
	err *domain.Error
}

func (e graphQLError) Error() string { return e.err.Message }

func (e graphQLError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{
		"code":   string(e.err.Kind),
		"status": e.err.HTTPStatus(),
	}
	if e.err.Details != "" {
		ext["details"] = e.err.Details
	}
	return ext
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	originType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Origin",
		Fields: graphql.Fields{
			"city":      &graphql.Field{Type: graphql.String},
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	optionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RecommendationOption",
		Fields: graphql.Fields{
			"id":                          &graphql.Field{Type: graphql.String},
			"mode":                        &graphql.Field{Type: graphql.String},
			"duration_minutes":            &graphql.Field{Type: graphql.Int},
			"cost_usd":                    &graphql.Field{Type: graphql.Float},
			"environmental_impact_co2_kg": &graphql.Field{Type: graphql.Float},
			"estimated_distance_km":       &graphql.Field{Type: graphql.Float},
			"source_cloud":                &graphql.Field{Type: graphql.String},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteRecommendations",
		Fields: graphql.Fields{
			"origin":                &graphql.Field{Type: originType},
			"destination_requested": &graphql.Field{Type: graphql.String},
			"destination_coords":    &graphql.Field{Type: geoPointType},
			"preference":            &graphql.Field{Type: graphql.String},
			"recommendations":       &graphql.Field{Type: graphql.NewList(optionType)},
			"notes":                 &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Recommend transport options to a destination city",
				Args: graphql.FieldConfigArgument{
					"destination": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"preference":  &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.DefaultPreference)},
					"testIp":      &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					dest, _ := p.Args["destination"].(string)
					pref, _ := p.Args["preference"].(string)
					ip, _ := p.Args["testIp"].(string)

					res, err := deps.Gateway.GetRouteRecommendations(p.Context, usecases.RouteQuery{
						Destination: dest,
						Preference:  domain.Preference(pref),
						IP:          ip,
					})
					if err != nil {
						if e, ok := domain.AsError(err); ok {
							return nil, graphQLError{err: e}
						}
						return nil, err
					}
					return routeResult(res), nil
				},
			},
			"cities": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Destination cities the geocoder knows",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Geocoder.Cities(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func routeResult(r *domain.RouteRecommendations) map[string]interface{} {
	options := make([]map[string]interface{}, 0, len(r.Recommendations))
	for _, o := range r.Recommendations {
		options = append(options, map[string]interface{}{
			"id":                          o.ID,
			"mode":                        o.Mode,
			"duration_minutes":            o.DurationMinutes,
			"cost_usd":                    o.CostUSD,
			"environmental_impact_co2_kg": o.CO2Kg,
			"estimated_distance_km":       o.DistanceKm,
			"source_cloud":                o.Source,
		})
	}
	return map[string]interface{}{
		"origin": map[string]interface{}{
			"city":      r.Origin.City,
			"latitude":  r.Origin.Latitude,
			"longitude": r.Origin.Longitude,
		},
		"destination_requested": r.DestinationRequested,
		"destination_coords": map[string]interface{}{
			"latitude":  r.DestinationCoords.Latitude,
			"longitude": r.DestinationCoords.Longitude,
		},
		"preference":      string(r.Preference),
		"recommendations": options,
		"notes":           r.Notes,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
