package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Apotikme Back-Office API",
        "description": "Change request approval workflow with dual-store reconciliation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "ChangeRequests", "description": "Edit and delete proposals awaiting approval"},
        {"name": "Notifications", "description": "Approver unread badge"},
        {"name": "Sync", "description": "Local cache and shared store reconciliation"}
    ],
    "paths": {
        "/change-requests": {
            "get": {
                "tags": ["ChangeRequests"],
                "summary": "List change requests",
                "parameters": [
                    {"name": "kind", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["ChangeRequests"],
                "summary": "Submit a change request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitChangeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Subject not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Pending request exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/change-requests/export": {
            "get": {
                "tags": ["ChangeRequests"],
                "summary": "Export change request history",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "kind", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/change-requests/{id}": {
            "get": {
                "tags": ["ChangeRequests"],
                "summary": "Get change request detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["ChangeRequests"],
                "summary": "Cancel a change request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Cancelled"},
                    "403": {"description": "Not the requester", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not cancellable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/change-requests/{id}/approve": {
            "post": {
                "tags": ["ChangeRequests"],
                "summary": "Approve and apply a pending change request",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Apply failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/change-requests/{id}/reject": {
            "post": {
                "tags": ["ChangeRequests"],
                "summary": "Reject a pending change request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectChangeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/change-requests/{id}/complete": {
            "post": {
                "tags": ["ChangeRequests"],
                "summary": "Finalise an approved change request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/change-requests/{id}/audit": {
            "get": {
                "tags": ["ChangeRequests"],
                "summary": "List audit entries for a change request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/unread-count": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Count unread pending change requests",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/mark-all-read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Acknowledge every pending change request",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/status": {
            "get": {
                "tags": ["Sync"],
                "summary": "Sync status per subject kind",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/pull": {
            "post": {
                "tags": ["Sync"],
                "summary": "Pull and reconcile from the shared store",
                "parameters": [{"name": "kind", "in": "query", "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Remote unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/push": {
            "post": {
                "tags": ["Sync"],
                "summary": "Push local changes to the shared store",
                "parameters": [{"name": "kind", "in": "query", "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Remote unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records/{kind}": {
            "get": {
                "tags": ["Sync"],
                "summary": "List the locally cached records of a kind",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SubmitChangeRequest": {
            "type": "object",
            "required": ["subjectKind", "subjectId", "action", "reason"],
            "properties": {
                "subjectKind": {"type": "string"},
                "subjectId": {"type": "string"},
                "action": {"type": "string", "enum": ["EDIT_DATA", "DELETE_DATA"]},
                "reason": {"type": "string"},
                "proposedData": {"type": "object"},
                "isGlobal": {"type": "boolean"},
                "voucherNo": {"type": "string"}
            }
        },
        "RejectChangeRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"}
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
