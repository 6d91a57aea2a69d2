package openapi

// errorResponse is the {"error": "..."} body every handler writes on failure.
func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content:     map[string]*MediaType{"application/json": {Schema: SchemaRef("Error")}},
	}
}

// NewComponents returns the schemas and error responses shared by every
// operation.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"Error": {
				Type:       "object",
				Required:   []string{"error"},
				Properties: map[string]*Schema{"error": {Type: "string"}},
			},
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "1-based page number", Example: 1},
					"page_size": {Type: "integer", Description: "Items per page, capped by the server", Example: 25},
					"search":    {Type: "string", Description: "Case-insensitive text search"},
					"sort":      {Type: "string", Description: "Comma-separated fields, - prefix for descending", Example: "-created_at,filename"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":           errorResponse("Malformed identifier or request body"),
			"NotFound":             errorResponse("Document, run or interpretation not found"),
			"Conflict":             errorResponse("Stale interpretation version or invalid review transition"),
			"PayloadTooLarge":      errorResponse("Upload exceeds the configured size limit"),
			"UnsupportedMediaType": errorResponse("Upload is not a PDF"),
		},
	}
}

// AddSchemas registers additional component schemas, replacing any with the
// same name.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	for name, s := range schemas {
		c.Schemas[name] = s
	}
}
