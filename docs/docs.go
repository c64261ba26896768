// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/api/main.go
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
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {
                        "description": "Credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.credentialsRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.userResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Exchange credentials for a bearer token",
                "parameters": [
                    {
                        "description": "Credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.credentialsRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.loginResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/streak/claim": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Evaluates the caller's streak and claims it if not yet claimed today.",
                "produces": ["application/json"],
                "tags": ["streak"],
                "summary": "Claim today's streak",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.claimResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/streak": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["streak"],
                "summary": "Preview the caller's streak",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.statusResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/leaderboard": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["streak"],
                "summary": "Top streaks",
                "parameters": [
                    {"type": "integer", "description": "Number of entries (1-100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.leaderboardResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.LeaderboardEntry": {
            "type": "object",
            "properties": {
                "rank": {"type": "integer"},
                "streak": {"type": "integer"},
                "username": {"type": "string"}
            }
        },
        "http.credentialsRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {
                "password": {"type": "string", "minLength": 8},
                "username": {"type": "string", "maxLength": 32, "minLength": 3}
            }
        },
        "http.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "http.userResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "joined_at": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "http.loginResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/http.userResponse"}
            }
        },
        "http.streakUserResponse": {
            "type": "object",
            "properties": {
                "joined_at": {"type": "string"},
                "last_login": {"type": "string"},
                "streak": {"type": "integer"},
                "streak_claimed_on": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "http.claimResponse": {
            "type": "object",
            "properties": {
                "joined_at": {"type": "string"},
                "last_login": {"type": "string"},
                "message": {"type": "string"},
                "outcome": {"type": "string", "enum": ["CLAIMED", "ALREADY_CLAIMED", "STREAK_LOST"]},
                "streak": {"type": "integer"},
                "streak_claimed_on": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "http.statusResponse": {
            "type": "object",
            "properties": {
                "at_risk": {"type": "boolean"},
                "claimable": {"type": "boolean"},
                "evaluated_at": {"type": "string"},
                "next_outcome": {"type": "string", "enum": ["CLAIMED", "ALREADY_CLAIMED", "STREAK_LOST"]},
                "user": {"$ref": "#/definitions/http.streakUserResponse"}
            }
        },
        "http.leaderboardResponse": {
            "type": "object",
            "properties": {
                "entries": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/domain.LeaderboardEntry"}
                }
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
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Kanso Streak API",
	Description:      "Daily login streaks with username/password auth.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
