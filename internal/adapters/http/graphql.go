package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	geojsonadapter "github.com/samirrijal/ogcview/internal/adapters/geojson"
	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/usecases"
)

// jsonScalar passes property maps, ids and GeoJSON geometries through as-is.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize:   func(v interface{}) interface{} { return v },
})

func bboxMap(b domain.BoundingBox) map[string]interface{} {
	return map[string]interface{}{
		"west":  b.West,
		"south": b.South,
		"east":  b.East,
		"north": b.North,
		"bbox":  b.String(),
	}
}

func viewArgs(p graphql.ResolveParams) (domain.ViewState, int, int) {
	view := domain.ViewState{
		Longitude: p.Args["lon"].(float64),
		Latitude:  p.Args["lat"].(float64),
		Zoom:      p.Args["zoom"].(float64),
	}
	return view, p.Args["width"].(int), p.Args["height"].(int)
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	collectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Collection",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
		},
	})

	bboxType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BoundingBox",
		Fields: graphql.Fields{
			"west":  &graphql.Field{Type: graphql.Float},
			"south": &graphql.Field{Type: graphql.Float},
			"east":  &graphql.Field{Type: graphql.Float},
			"north": &graphql.Field{Type: graphql.Float},
			"bbox":  &graphql.Field{Type: graphql.String},
		},
	})

	featureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Feature",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: jsonScalar},
			"properties": &graphql.Field{Type: jsonScalar},
			"geometry":   &graphql.Field{Type: jsonScalar, Description: "GeoJSON geometry or null"},
		},
	})

	itemsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Items",
		Fields: graphql.Fields{
			"numberReturned": &graphql.Field{Type: graphql.Int},
			"format":         &graphql.Field{Type: graphql.String},
			"bbox":           &graphql.Field{Type: bboxType},
			"features":       &graphql.Field{Type: graphql.NewList(featureType)},
		},
	})

	viewportArgs := func() graphql.FieldConfigArgument {
		return graphql.FieldConfigArgument{
			"lon":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
			"lat":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
			"zoom":   &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
			"width":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
			"height": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
		}
	}

	itemsArgs := viewportArgs()
	itemsArgs["endpoint"] = &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""}
	itemsArgs["collection"] = &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}
	itemsArgs["bbox"] = &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "", Description: "west,south,east,north; overrides the viewport"}
	itemsArgs["format"] = &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "geojson"}
	itemsArgs["limit"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"collections": &graphql.Field{
				Type:        graphql.NewList(collectionType),
				Description: "List the collections of an OGC API Features endpoint",
				Args: graphql.FieldConfigArgument{
					"endpoint": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cols, err := deps.Catalog.ListCollections(p.Context, p.Args["endpoint"].(string))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(cols))
					for _, col := range cols {
						out = append(out, map[string]interface{}{
							"id":          col.ID,
							"title":       col.Title,
							"description": col.Description,
						})
					}
					return out, nil
				},
			},
			"bounds": &graphql.Field{
				Type:        bboxType,
				Description: "Bounding box visible from a view",
				Args:        viewportArgs(),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					view, w, h := viewArgs(p)
					if w <= 0 || h <= 0 {
						return nil, fmt.Errorf("width and height must be positive")
					}
					return bboxMap(deps.Catalog.Bounds(view, w, h)), nil
				},
			},
			"items": &graphql.Field{
				Type:        itemsType,
				Description: "Load the features of a collection inside a bbox",
				Args:        itemsArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					view, w, h := viewArgs(p)
					q := usecases.ItemsQuery{
						Endpoint:     p.Args["endpoint"].(string),
						CollectionID: p.Args["collection"].(string),
						View:         view,
						Width:        w,
						Height:       h,
						Format:       domain.ParseFetchFormat(p.Args["format"].(string)),
						Limit:        p.Args["limit"].(int),
					}
					if raw := p.Args["bbox"].(string); raw != "" {
						bbox, err := domain.ParseBoundingBox(raw)
						if err != nil {
							return nil, err
						}
						q.BBox = &bbox
					}

					res, err := deps.Catalog.Items(p.Context, q)
					if err != nil {
						return nil, err
					}

					fc := geojsonadapter.ToFeatureCollection(res.Features)
					features := make([]map[string]interface{}, 0, len(fc.Features))
					for _, f := range fc.Features {
						var geom interface{}
						if len(f.Geometry) > 0 {
							geom = f.Geometry
						}
						features = append(features, map[string]interface{}{
							"id":         f.ID,
							"properties": f.Properties,
							"geometry":   geom,
						})
					}
					return map[string]interface{}{
						"numberReturned": len(features),
						"format":         string(res.SourceFormat),
						"bbox":           bboxMap(res.RequestedBBox),
						"features":       features,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
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
		if err := c.BodyParser(&req); err != nil {
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
