// Package docs registers the swagger document served under /swagger.
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
        "/admin/tests": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin - Tests"],
                "summary": "Create a test with its questions",
                "parameters": [{"in": "body", "name": "test", "required": true, "schema": {"$ref": "#/definitions/dto.TestCreateDTO"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.TestResponseDTO"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/admin/scheduled-tests": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin - Tests"],
                "summary": "Schedule a test for a class",
                "parameters": [{"in": "body", "name": "schedule", "required": true, "schema": {"$ref": "#/definitions/dto.ScheduledTestCreateDTO"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.ScheduledTestResponseDTO"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/tests": {
            "get": {
                "produces": ["application/json"],
                "tags": ["User - Tests"],
                "summary": "List tests",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/dto.TestSummaryDTO"}}}}
            }
        },
        "/classes/{class_id}/scheduled-tests": {
            "get": {
                "produces": ["application/json"],
                "tags": ["User - Tests"],
                "summary": "List scheduled tests for a class",
                "parameters": [{"type": "string", "name": "class_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/dto.ScheduledTestResponseDTO"}}}}
            }
        },
        "/scheduled-tests/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["User - Tests"],
                "summary": "Get a scheduled test with its questions",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ScheduledTestResponseDTO"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/scheduled-tests/{id}/attempts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["User - Results"],
                "summary": "List attempts on a scheduled test",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "student_id", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/dto.AttemptSummaryDTO"}}}}
            }
        },
        "/scheduled-tests/{id}/sessions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["User - Sessions"],
                "summary": "Start or resume an attempt session",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.StartSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.SessionResponseDTO"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/sessions/{session_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["User - Sessions"],
                "summary": "Get session state",
                "parameters": [{"type": "string", "name": "session_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SessionResponseDTO"}}}
            }
        },
        "/sessions/{session_id}/answers": {
            "get": {
                "produces": ["application/json"],
                "tags": ["User - Sessions"],
                "summary": "Get the draft answers",
                "parameters": [{"type": "string", "name": "session_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/sessions/{session_id}/answers/{question_id}": {
            "put": {
                "consumes": ["application/json"],
                "tags": ["User - Sessions"],
                "summary": "Record a draft answer",
                "parameters": [
                    {"type": "string", "name": "session_id", "in": "path", "required": true},
                    {"type": "integer", "name": "question_id", "in": "path", "required": true},
                    {"in": "body", "name": "answer", "required": true, "schema": {"$ref": "#/definitions/dto.AnswerRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}}
            }
        },
        "/sessions/{session_id}/submit": {
            "post": {
                "produces": ["application/json"],
                "tags": ["User - Sessions"],
                "summary": "Submit the attempt",
                "parameters": [{"type": "string", "name": "session_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.OutcomeDTO"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/sessions/{session_id}/abandon": {
            "post": {
                "tags": ["User - Sessions"],
                "summary": "Abandon the attempt so it can be resumed later",
                "parameters": [{"type": "string", "name": "session_id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/sessions/{session_id}/events": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["User - Sessions"],
                "summary": "Stream remaining time and lifecycle events",
                "parameters": [{"type": "string", "name": "session_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/attempts/{attempt_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["User - Results"],
                "summary": "Get a scored attempt",
                "parameters": [{"type": "integer", "name": "attempt_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.AttemptDetailDTO"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.TestCreateDTO": {"type": "object"},
        "dto.TestResponseDTO": {"type": "object"},
        "dto.ScheduledTestCreateDTO": {"type": "object"},
        "dto.ScheduledTestResponseDTO": {"type": "object"},
        "dto.TestSummaryDTO": {"type": "object"},
        "dto.AttemptSummaryDTO": {"type": "object"},
        "dto.AttemptDetailDTO": {"type": "object"},
        "dto.StartSessionRequest": {"type": "object"},
        "dto.SessionResponseDTO": {"type": "object"},
        "dto.AnswerRequest": {"type": "object"},
        "dto.OutcomeDTO": {"type": "object"},
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Timed Test Attempt API",
	Description:      "Admission, timed sessions, auto-submit and scoring for scheduled tests.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
