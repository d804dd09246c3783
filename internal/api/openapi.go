package api

import (
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// APIVersion is reported in the OpenAPI document.
const APIVersion = "1.0.0"

// OpenAPISpec returns the OpenAPI 3 description of the routes served by NewRouter.
var OpenAPISpec = sync.OnceValue(buildOpenAPISpec)

func buildOpenAPISpec() *openapi3.T {
	stringList := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	queryModel := openapi3.NewObjectSchema().
		WithProperty("description", openapi3.NewStringSchema()).
		WithProperty("table", openapi3.NewStringSchema()).
		WithProperty("select", stringList).
		WithProperty("measures", stringList).
		WithProperty("dimensions", stringList).
		WithProperty("where", openapi3.NewStringSchema()).
		WithProperty("order_by", stringList).
		WithProperty("limit", openapi3.NewInt64Schema().WithMin(0))
	rows := openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema().WithAnyAdditionalProperties())
	errorBody := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewIntegerSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("request_id", openapi3.NewStringSchema())
	anyObject := openapi3.NewObjectSchema().WithAnyAdditionalProperties()

	orgParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("organization").WithSchema(openapi3.NewStringSchema())}
	datasetParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("dataset").WithSchema(openapi3.NewStringSchema())}
	definitionParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("definition").WithSchema(openapi3.NewStringSchema())}

	queryDataset := operation("queryDataset", "Query a dataset", "query",
		openapi3.WithStatus(http.StatusOK, jsonResponse("Matching rows in column order", rows)),
		openapi3.WithStatus(http.StatusBadRequest, jsonResponse("Invalid query model", errorBody)),
		openapi3.WithStatus(http.StatusNotFound, jsonResponse("Unknown dataset or no rows matched", errorBody)),
		openapi3.WithStatus(http.StatusGatewayTimeout, jsonResponse("Query timed out", errorBody)),
	)
	queryDataset.Parameters = openapi3.Parameters{orgParam, datasetParam}
	queryDataset.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchema(queryModel)}

	queryByKey := operation("queryDatasetByKey", "Query a dataset by organization/dataset key", "query",
		openapi3.WithStatus(http.StatusOK, jsonResponse("Matching rows in column order", rows)),
		openapi3.WithStatus(http.StatusBadRequest, jsonResponse("Invalid request", errorBody)),
	)
	queryByKey.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchema(openapi3.NewObjectSchema().
			WithProperty("dataset", openapi3.NewStringSchema()).
			WithProperty("query", queryModel))}

	getDatacard := operation("getDatacard", "Get a datacard", "metadata",
		openapi3.WithStatus(http.StatusOK, jsonResponse("Datacard document", anyObject)),
		openapi3.WithStatus(http.StatusNotFound, jsonResponse("Unknown datacard", errorBody)),
	)
	getDatacard.Parameters = openapi3.Parameters{orgParam, definitionParam}

	getDataset := operation("getDataset", "Get a dataset descriptor", "metadata",
		openapi3.WithStatus(http.StatusOK, jsonResponse("Dataset descriptor", anyObject)),
		openapi3.WithStatus(http.StatusNotFound, jsonResponse("Unknown dataset", errorBody)),
	)
	getDataset.Parameters = openapi3.Parameters{orgParam, datasetParam}

	listHistory := operation("listQueryHistory", "List executed queries", "history",
		openapi3.WithStatus(http.StatusOK, jsonResponse("A page of history entries", anyObject)),
		openapi3.WithStatus(http.StatusForbidden, jsonResponse("Organization not accessible", errorBody)),
	)
	for _, name := range []string{"organization", "dataset", "status", "page_token"} {
		listHistory.Parameters = append(listHistory.Parameters,
			&openapi3.ParameterRef{Value: openapi3.NewQueryParameter(name).WithSchema(openapi3.NewStringSchema())})
	}
	listHistory.Parameters = append(listHistory.Parameters,
		&openapi3.ParameterRef{Value: openapi3.NewQueryParameter("max_results").WithSchema(openapi3.NewIntegerSchema())})

	health := operation("health", "Liveness probe", "system",
		openapi3.WithStatus(http.StatusOK, jsonResponse("Service is up", anyObject)),
	)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "dataframehub",
			Version:     APIVersion,
			Description: "Query file-backed datasets with a declarative query model. Routes other than /health and /openapi.json require a bearer token when authentication is enabled.",
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/health", &openapi3.PathItem{Get: health}),
			openapi3.WithPath("/query/{organization}/{dataset}", &openapi3.PathItem{Post: queryDataset}),
			openapi3.WithPath("/api/query_dataset", &openapi3.PathItem{Post: queryByKey}),
			openapi3.WithPath("/api/datacard/{organization}/{definition}", &openapi3.PathItem{Get: getDatacard}),
			openapi3.WithPath("/api/datasets/{organization}/{dataset}", &openapi3.PathItem{Get: getDataset}),
			openapi3.WithPath("/api/history", &openapi3.PathItem{Get: listHistory}),
		),
	}
}

func operation(id, summary, tag string, responses ...openapi3.NewResponsesOption) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{tag}
	op.Responses = openapi3.NewResponses(responses...)
	return op
}

func jsonResponse(description string, schema *openapi3.Schema) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(description).WithJSONSchema(schema)}
}

// ServeOpenAPI writes the OpenAPI document as JSON.
func ServeOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, OpenAPISpec())
}
