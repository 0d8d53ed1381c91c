package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, required bool, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      schema,
	}
}

func jsonContent(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content":     jsonContent(map[string]string{"$ref": "#/components/schemas/ErrorResponse"}),
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Flow Network API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	nullableSeries := map[string]interface{}{
		"type": "object",
		"additionalProperties": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "number", "nullable": true},
		},
	}
	metadataList := map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"key":   map[string]string{"type": "string"},
				"label": map[string]string{"type": "string"},
			},
		},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Flow Network API",
			"description": "Dated flow networks of reservoir simulation group trees with production and injection rates",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Flow Network Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/flow-network": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get dated flow networks",
					"description": "Assemble the flow networks of one realization, one per group tree validity window",
					"parameters": []map[string]interface{}{
						queryParam("case_uuid", "Simulation case UUID", true, map[string]interface{}{"type": "string", "format": "uuid"}),
						queryParam("ensemble_name", "Ensemble name", true, map[string]interface{}{"type": "string"}),
						queryParam("realization", "Realization number (default: 0)", false, map[string]interface{}{"type": "integer", "default": 0, "minimum": 0}),
						queryParam("resampling_frequency", "Resampling frequency of the summary vectors", false, map[string]interface{}{
							"type": "string",
							"enum": []string{"DAILY", "WEEKLY", "MONTHLY", "QUARTERLY", "YEARLY"},
						}),
						queryParam("node_type_set", "Comma separated node types to keep", false, map[string]interface{}{
							"type":    "string",
							"example": "prod,inj,other",
						}),
						queryParam("tree_type", "Group routing dialect", false, map[string]interface{}{
							"type":    "string",
							"enum":    []string{"GRUPTREE", "BRANPROP"},
							"default": "GRUPTREE",
						}),
						queryParam("terminal_node", "Root node of the networks (default: FIELD)", false, map[string]interface{}{"type": "string"}),
						queryParam("exclude_well_prefixes", "Comma separated well name prefixes to drop", false, map[string]interface{}{"type": "string"}),
						queryParam("exclude_well_suffixes", "Comma separated well name suffixes to drop", false, map[string]interface{}{"type": "string"}),
						queryParam("mode", "Assembly mode; only single_realization is supported", false, map[string]interface{}{
							"type":    "string",
							"enum":    []string{"single_realization", "statistics"},
							"default": "single_realization",
						}),
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"edge_metadata_list": metadataList,
									"node_metadata_list": metadataList,
									"dated_networks": map[string]interface{}{
										"type": "array",
										"items": map[string]interface{}{
											"type": "object",
											"properties": map[string]interface{}{
												"dates":   map[string]interface{}{"type": "array", "items": map[string]string{"type": "string", "format": "date"}},
												"network": map[string]string{"$ref": "#/components/schemas/NetworkNode"},
											},
										},
									},
									"skipped_dates": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string", "format": "date"}},
								},
							}),
						},
						"400": errorResponse("Invalid request parameters or unsupported mode"),
						"404": errorResponse("No group tree or summary data for the request"),
						"422": errorResponse("Group tree or summary data cannot form a network"),
						"500": errorResponse("Internal error"),
					},
				},
			},
			"/api/ensembles": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List ensembles",
					"description": "List stored ensembles with the realizations that have a group tree",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"data": map[string]interface{}{
										"type": "array",
										"items": map[string]interface{}{
											"type": "object",
											"properties": map[string]interface{}{
												"case_uuid":     map[string]string{"type": "string", "format": "uuid"},
												"ensemble_name": map[string]string{"type": "string"},
												"realizations":  map[string]interface{}{"type": "array", "items": map[string]string{"type": "integer"}},
												"created_at":    map[string]string{"type": "string", "format": "date-time"},
											},
										},
									},
									"total": map[string]string{"type": "integer"},
								},
							}),
						},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and its store are reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"status":    map[string]string{"type": "string"},
									"timestamp": map[string]string{"type": "string", "format": "date-time"},
								},
							}),
						},
						"503": map[string]interface{}{"description": "Store unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"NetworkNode": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"node_label": map[string]string{"type": "string"},
						"node_type":  map[string]interface{}{"type": "string", "enum": []string{"Well", "Group"}},
						"edge_label": map[string]string{"type": "string"},
						"node_data":  nullableSeries,
						"edge_data":  nullableSeries,
						"children": map[string]interface{}{
							"type":  "array",
							"items": map[string]string{"$ref": "#/components/schemas/NetworkNode"},
						},
					},
				},
				"ErrorResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
						"kind": map[string]interface{}{
							"type": "string",
							"enum": []string{"no_data", "invalid_configuration", "bad_request", "internal"},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
