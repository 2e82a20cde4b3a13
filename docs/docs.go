// Package docs registers the Swagger document served under /swagger. Keep it in step with
// the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/expenses": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Expenses"],
                "summary": "List expenses",
                "parameters": [
                    {"type": "string", "description": "Range start (YYYY-MM-DD)", "name": "start", "in": "query"},
                    {"type": "string", "description": "Range end (YYYY-MM-DD)", "name": "end", "in": "query"},
                    {"type": "string", "description": "Category", "name": "category", "in": "query"},
                    {"type": "integer", "description": "Page", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Expenses"],
                "summary": "Create expense",
                "parameters": [
                    {"description": "Expense", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.CreateExpenseRequest"}}
                ],
                "responses": {
                    "200": {"description": "Created", "schema": {"$ref": "#/definitions/api.Response"}},
                    "400": {"description": "Invalid parameters", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/expenses/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Expenses"],
                "summary": "Delete expense",
                "parameters": [
                    {"type": "integer", "description": "Expense ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/api.Response"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/categories": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Categories"],
                "summary": "List categories",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Categories"],
                "summary": "Create category",
                "parameters": [
                    {"description": "Category", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.CategoryCreateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Created", "schema": {"$ref": "#/definitions/api.Response"}},
                    "400": {"description": "Duplicate name", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/budgets": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Budgets"],
                "summary": "Get budget",
                "parameters": [
                    {"type": "string", "description": "Month (YYYY-MM)", "name": "month", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}},
                    "400": {"description": "Invalid month", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Budgets"],
                "summary": "Set budget",
                "parameters": [
                    {"description": "Budget", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.SetBudgetRequest"}}
                ],
                "responses": {
                    "200": {"description": "Saved", "schema": {"$ref": "#/definitions/api.Response"}},
                    "400": {"description": "Invalid parameters", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/analytics/snapshot": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Analytics snapshot",
                "parameters": [
                    {"type": "string", "description": "Ambient range start (YYYY-MM-DD)", "name": "start", "in": "query"},
                    {"type": "string", "description": "Ambient range end (YYYY-MM-DD)", "name": "end", "in": "query"},
                    {"type": "string", "description": "Custom range start", "name": "custom_start", "in": "query"},
                    {"type": "string", "description": "Custom range end", "name": "custom_end", "in": "query"},
                    {"type": "string", "description": "neutral or playful", "name": "mood", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/analytics/signature": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Snapshot signature",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}}}
            }
        },
        "/api/v1/analytics/coach": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Coach"],
                "summary": "Coach status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Coach"],
                "summary": "Request coach narrative",
                "parameters": [
                    {"type": "boolean", "description": "Block until the narrative is ready", "name": "wait", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Accepted", "schema": {"$ref": "#/definitions/api.Response"}},
                    "409": {"description": "Numbers changed while writing", "schema": {"$ref": "#/definitions/api.Response"}},
                    "503": {"description": "Coach disabled", "schema": {"$ref": "#/definitions/api.Response"}}
                }
            }
        },
        "/api/v1/analytics/coach/read": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Coach"],
                "summary": "Mark narrative read",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}}}
            }
        },
        "/api/v1/analytics/coach/panel": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Coach"],
                "summary": "Set panel state",
                "parameters": [
                    {"description": "Panel state", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.PanelRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Response"}}}
            }
        },
        "/api/v1/export/snapshot.csv": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "tags": ["Export"],
                "summary": "Export snapshot as CSV",
                "responses": {"200": {"description": "CSV file", "schema": {"type": "file"}}}
            }
        },
        "/api/v1/export/snapshot.xlsx": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Export"],
                "summary": "Export snapshot as Excel",
                "responses": {"200": {"description": "Excel file", "schema": {"type": "file"}}}
            }
        }
    },
    "definitions": {
        "api.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"}
            }
        },
        "api.CreateExpenseRequest": {
            "type": "object",
            "properties": {
                "merchant_name": {"type": "string"},
                "date": {"type": "string"},
                "total_amount": {"type": "number"},
                "category": {"type": "string"},
                "currency": {"type": "string"},
                "source": {"type": "string"},
                "items": {"type": "array", "items": {"type": "object"}}
            }
        },
        "api.CategoryCreateRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "icon": {"type": "string"},
                "sort": {"type": "integer"},
                "color": {"type": "string"}
            }
        },
        "api.SetBudgetRequest": {
            "type": "object",
            "required": ["month", "amounts"],
            "properties": {
                "month": {"type": "string", "example": "2024-06"},
                "amounts": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "api.PanelRequest": {
            "type": "object",
            "required": ["open"],
            "properties": {
                "open": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Expensight API",
	Description:      "Spending aggregation, budgets and analytics snapshots for personal expenses",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
