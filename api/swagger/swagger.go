// Package swagger holds the hand-maintained OpenAPI document served at /docs.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "AulaLink API",
        "description": "School communication backend: rosters, announcements, messaging, media",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Registration, login and token lifecycle"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Groups", "description": "Class group rosters"},
        {"name": "Students", "description": "Student records and guardians"},
        {"name": "Announcements", "description": "Targeted announcements"},
        {"name": "Media", "description": "Shared files, downloads and thumbnails"},
        {"name": "Threads", "description": "Direct messaging"},
        {"name": "Notifications", "description": "Per-user notification ledger"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new account",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange credentials for tokens",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Validation failed"}}
            }
        },
        "/groups": {
            "get": {
                "tags": ["Groups"],
                "summary": "List class groups",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Groups"],
                "summary": "Create class group",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create student",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/announcements": {
            "get": {
                "tags": ["Announcements"],
                "summary": "List announcements visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Announcements"],
                "summary": "Create announcement",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Validation failed"}}
            }
        },
        "/announcements/{id}/publish": {
            "post": {
                "tags": ["Announcements"],
                "summary": "Publish announcement and notify its audience",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Already published"}}
            }
        },
        "/media": {
            "get": {
                "tags": ["Media"],
                "summary": "List media visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Media"],
                "summary": "Upload media (multipart)",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Validation failed"}}
            }
        },
        "/media/{id}/download": {
            "get": {
                "tags": ["Media"],
                "summary": "Download the stored file",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "File stream"}, "404": {"description": "Not found or not visible"}}
            }
        },
        "/media/{id}/thumbnail": {
            "get": {
                "tags": ["Media"],
                "summary": "Bounded preview image",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "size", "in": "query", "type": "string", "enum": ["sm", "md", "lg"]}
                ],
                "responses": {"200": {"description": "Image"}, "404": {"description": "Not found or not visible"}}
            }
        },
        "/threads": {
            "get": {
                "tags": ["Threads"],
                "summary": "List threads by latest activity",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Threads"],
                "summary": "Start a thread (a direct thread reuses the existing pair thread)",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/threads/unread": {
            "get": {
                "tags": ["Threads"],
                "summary": "Per-thread unread counts plus global total",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications/badge": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Unread badge count (briefly cached)",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["name", "email", "password", "role"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "role": {"type": "string", "enum": ["admin", "teacher", "parent"]}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
