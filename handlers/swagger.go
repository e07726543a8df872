package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/farmtrack/farmtrack/backend/go-services/pkg/middleware"
)

const identityHeaderPlaceholder = `"{{identityHeader}}"`

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the farmer API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
// identityHeader names the caller-id header in the security scheme; empty
// means x-user-id.
func RegisterSwagger(rg *gin.Engine, identityHeader string) {
	if identityHeader == "" {
		identityHeader = middleware.DefaultIdentityHeader
	}
	name, _ := json.Marshal(identityHeader)
	doc := []byte(strings.ReplaceAll(swaggerJSON, identityHeaderPlaceholder, string(name)))

	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>farmtrack API - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the farmer API and the operational endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "farmtrack-api", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "callerId": { "type": "apiKey", "in": "header", "name": "{{identityHeader}}" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": { "type": "string" } } },
      "ProfileInput": { "type": "object", "required": ["email"], "properties": { "name": {"type":"string"}, "email": {"type":"string"}, "district": {"type":"string"} } },
      "Profile": { "type": "object", "properties": { "id": {"type":"string"}, "name": {"type":"string"}, "email": {"type":"string"}, "district": {"type":"string"}, "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"} } },
      "Crop": { "type": "object", "properties": { "id": {"type":"string"}, "ownerId": {"type":"string"}, "name": {"type":"string"}, "createdAt": {"type":"string","format":"date-time"} } }
    }
  },
  "security": [ { "callerId": [] } ],
  "paths": {
    "/api/profile": {
      "get": { "summary": "Get the caller's profile", "responses": { "200": { "description": "profile, or {} when none exists" }, "401": { "description": "missing caller identity" } } },
      "post": { "summary": "Create or overwrite the caller's profile", "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ProfileInput" } } } }, "responses": { "200": { "description": "{ok:true}" }, "400": { "description": "email required" }, "401": { "description": "missing caller identity" } } },
      "put": { "summary": "Same as POST", "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/ProfileInput" } } } }, "responses": { "200": { "description": "{ok:true}" }, "400": { "description": "email required" }, "401": { "description": "missing caller identity" } } }
    },
    "/api/crops": {
      "get": { "summary": "List the caller's crops, newest first", "responses": { "200": { "description": "array of crops", "content": { "application/json": { "schema": { "type": "array", "items": { "$ref": "#/components/schemas/Crop" } } } } }, "401": { "description": "missing caller identity" } } },
      "post": { "summary": "Add a crop", "requestBody": { "content": { "application/json": { "schema": { "type": "object", "required": ["name"], "properties": { "name": {"type":"string"} } } } } }, "responses": { "200": { "description": "{id}" }, "400": { "description": "name required" }, "401": { "description": "missing caller identity" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "text exposition" } } } }
  }
}`
