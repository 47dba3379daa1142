package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Academy Schedule API",
        "description": "Lesson scheduling, kiosk check-in and absence/makeup tracking for a tutoring academy.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Kiosk", "description": "Phone-number check-in from the lobby tablet"},
        {"name": "Catalog", "description": "Fixed slot grid"},
        {"name": "Lessons", "description": "Teacher boards, memos and tasks"},
        {"name": "Attendance", "description": "Console check-in, absences and makeups"},
        {"name": "Students", "description": "Roster and weekly patterns"},
        {"name": "FixedSchedules", "description": "Standing weekly commitments of teachers"}
    ],
    "paths": {
        "/kiosk/check-in": {
            "post": {
                "tags": ["Kiosk"],
                "summary": "Check in by phone number",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/KioskCheckInRequest"}}
                ],
                "responses": {
                    "200": {"description": "Checked in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown phone or no lessons today", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Ambiguous phone or already processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/catalog/slots": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List slots for a date or weekday",
                "parameters": [
                    {"in": "query", "name": "date", "type": "string"},
                    {"in": "query", "name": "weekday", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Teacher board for a day or a range of up to 31 days",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "teacher", "type": "string"},
                    {"in": "query", "name": "date", "type": "string"},
                    {"in": "query", "name": "from", "type": "string"},
                    {"in": "query", "name": "to", "type": "string"},
                    {"in": "query", "name": "type", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/export": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Download the board as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/lessons/artifacts": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Add a memo or task to a slot",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ArtifactRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/lessons/{id}": {
            "delete": {
                "tags": ["Lessons"],
                "summary": "Delete an artifact or unlinked makeup",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Lesson is linked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/memo": {
            "put": {
                "tags": ["Lessons"],
                "summary": "Replace the memo of a lesson",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/MemoRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/lessons/{id}/check-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check in a single lesson",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/absence": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Record an absence, optionally booking a makeup",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/MarkAbsentRequest"}}
                ],
                "responses": {"200": {"description": "Absence kept; makeup conflicts are returned as warnings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/lessons/{id}/reset": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Reset attendance and delete the linked makeup",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/lessons/{id}/link": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Resolve the absence/makeup pair from either end",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "teacher", "type": "string"},
                    {"in": "query", "name": "active", "type": "boolean"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "query", "name": "sort", "type": "string"},
                    {"in": "query", "name": "order", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register a student and materialize lessons",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Phone in use", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Partial materialization", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student and regenerate from effective_from",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Purge a withdrawn student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/students/{id}/withdraw": {
            "post": {
                "tags": ["Students"],
                "summary": "Withdraw a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/WithdrawRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/lessons": {
            "get": {
                "tags": ["Students"],
                "summary": "List a student's lessons",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "from", "type": "string"},
                    {"in": "query", "name": "to", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/check-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check in the student's pending one-to-one and reading lessons today",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/fixed-schedules": {
            "get": {
                "tags": ["FixedSchedules"],
                "summary": "List fixed schedules",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "teacher", "type": "string"},
                    {"in": "query", "name": "weekday", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["FixedSchedules"],
                "summary": "Create fixed schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/FixedScheduleRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/fixed-schedules/{id}": {
            "put": {
                "tags": ["FixedSchedules"],
                "summary": "Update fixed schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/FixedScheduleRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["FixedSchedules"],
                "summary": "Delete fixed schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        }
    },
    "definitions": {
        "KioskCheckInRequest": {
            "type": "object",
            "required": ["phone"],
            "properties": {"phone": {"type": "string"}}
        },
        "ArtifactRequest": {
            "type": "object",
            "required": ["teacher", "date", "time", "type", "memo"],
            "properties": {
                "teacher": {"type": "string"},
                "date": {"type": "string", "example": "2025-03-04"},
                "time": {"type": "string", "example": "16:00-16:40"},
                "type": {"type": "string", "enum": ["memo", "task"]},
                "memo": {"type": "string"}
            }
        },
        "MemoRequest": {
            "type": "object",
            "properties": {"memo": {"type": "string"}}
        },
        "MakeupRequest": {
            "type": "object",
            "required": ["date", "time"],
            "properties": {
                "date": {"type": "string"},
                "test_time": {"type": "string", "example": "15:40"},
                "time": {"type": "string"}
            }
        },
        "MarkAbsentRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"},
                "makeup": {"$ref": "#/definitions/MakeupRequest"}
            }
        },
        "StudentRequest": {
            "type": "object",
            "required": ["name", "teacher", "phone"],
            "properties": {
                "name": {"type": "string"},
                "school": {"type": "string"},
                "grade": {"type": "string"},
                "teacher": {"type": "string"},
                "phone": {"type": "string"},
                "enrolled_on": {"type": "string"},
                "one_day": {"type": "string", "example": "Tue"},
                "one_test_time": {"type": "string", "example": "15:40"},
                "one_class_time": {"type": "string", "example": "16:00-16:40"},
                "reading_days": {"type": "object", "additionalProperties": {"type": "string"}},
                "effective_from": {"type": "string"}
            }
        },
        "WithdrawRequest": {
            "type": "object",
            "required": ["date"],
            "properties": {"date": {"type": "string"}}
        },
        "FixedScheduleRequest": {
            "type": "object",
            "required": ["teacher", "weekday", "time", "content"],
            "properties": {
                "teacher": {"type": "string"},
                "weekday": {"type": "string"},
                "time": {"type": "string"},
                "content": {"type": "string"}
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "warnings": {"type": "array", "items": {"$ref": "#/definitions/APIError"}},
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
