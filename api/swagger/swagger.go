package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Becas API",
        "description": "Scholarship lifecycle service: applications, awards, slots and weekly reports",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Configurations", "description": "Scholarship requirements catalog"},
        {"name": "Applications", "description": "Application intake and review"},
        {"name": "Beneficiaries", "description": "Active award lifecycle"},
        {"name": "Slots", "description": "Work slot management"},
        {"name": "SlotApplications", "description": "Slot postulation workflow"},
        {"name": "Reports", "description": "Weekly activity reports"},
        {"name": "Documents", "description": "Supporting document storage"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/configurations": {
            "get": {
                "tags": ["Configurations"],
                "summary": "List scholarship configurations",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Configurations"],
                "summary": "Create or replace a configuration (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertConfigurationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/configurations/{type}": {
            "get": {
                "tags": ["Configurations"],
                "summary": "Get the configuration for a scholarship type",
                "parameters": [
                    {"name": "type", "in": "path", "required": true, "type": "string"},
                    {"name": "subtype", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/applications": {
            "get": {
                "tags": ["Applications"],
                "summary": "List applications",
                "parameters": [
                    {"name": "state", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Submit a scholarship application",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitApplicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/applications/direct": {
            "post": {
                "tags": ["Applications"],
                "summary": "Register an already-approved award (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitApplicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/applications/{id}": {
            "get": {
                "tags": ["Applications"],
                "summary": "Get application detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/applications/{id}/eligibility": {
            "get": {
                "tags": ["Applications"],
                "summary": "Advisory eligibility check",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/applications/{id}/approve": {
            "post": {
                "tags": ["Applications"],
                "summary": "Approve a pending application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/api/v1/applications/{id}/reject": {
            "post": {
                "tags": ["Applications"],
                "summary": "Reject a pending application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/api/v1/beneficiaries": {
            "get": {
                "tags": ["Beneficiaries"],
                "summary": "List beneficiaries",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "hasSlot", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/beneficiaries/{id}": {
            "get": {
                "tags": ["Beneficiaries"],
                "summary": "Get beneficiary detail with progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/beneficiaries/{id}/status": {
            "put": {
                "tags": ["Beneficiaries"],
                "summary": "Update beneficiary status (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/beneficiaries/{id}/availability": {
            "get": {
                "tags": ["Beneficiaries"],
                "summary": "Get weekly availability",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Beneficiaries"],
                "summary": "Replace weekly availability",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/api/v1/beneficiaries/{id}/hours": {
            "get": {
                "tags": ["Beneficiaries"],
                "summary": "Approved reports backing the completed hours",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/beneficiaries/{id}/assignment": {
            "delete": {
                "tags": ["Slots"],
                "summary": "Release the beneficiary's slot assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/api/v1/slots": {
            "get": {
                "tags": ["Slots"],
                "summary": "List slots with occupancy",
                "parameters": [
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "supervisorId", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Slots"],
                "summary": "Create a work slot (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSlotRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/slots/{id}": {
            "get": {
                "tags": ["Slots"],
                "summary": "Get slot detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Slots"],
                "summary": "Update a work slot (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/slots/{id}/beneficiaries": {
            "get": {
                "tags": ["Slots"],
                "summary": "List beneficiaries assigned to a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/slot-applications": {
            "get": {
                "tags": ["SlotApplications"],
                "summary": "List slot postulations",
                "parameters": [
                    {"name": "beneficiaryId", "in": "query", "type": "string"},
                    {"name": "slotId", "in": "query", "type": "string"},
                    {"name": "state", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["SlotApplications"],
                "summary": "Postulate a beneficiary to a slot",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/slot-applications/{id}": {
            "get": {
                "tags": ["SlotApplications"],
                "summary": "Get a slot postulation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/slot-applications/{id}/approve": {
            "post": {
                "tags": ["SlotApplications"],
                "summary": "Approve a postulation and seat the beneficiary",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided or slot full"}
                }
            }
        },
        "/api/v1/slot-applications/{id}/reject": {
            "post": {
                "tags": ["SlotApplications"],
                "summary": "Reject a postulation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/api/v1/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List weekly reports",
                "parameters": [
                    {"name": "beneficiaryId", "in": "query", "type": "string"},
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "state", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Submit a weekly activity report",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitReportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate week"}
                }
            }
        },
        "/api/v1/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get a weekly report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/reports/{id}/review": {
            "post": {
                "tags": ["Reports"],
                "summary": "Claim a pending report for review",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/reports/{id}/approve": {
            "post": {
                "tags": ["Reports"],
                "summary": "Approve a report and credit its hours",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/api/v1/reports/{id}/reject": {
            "post": {
                "tags": ["Reports"],
                "summary": "Reject a report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No content"}
                }
            }
        },
        "/api/v1/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a supporting document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/documents/{id}/url": {
            "get": {
                "tags": ["Documents"],
                "summary": "Issue a short-lived download grant",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/documents/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document with a signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "UpsertConfigurationRequest": {
            "type": "object",
            "required": ["scholarship_type"],
            "properties": {
                "scholarship_type": {"type": "string"},
                "subtype": {"type": "string"},
                "min_average": {"type": "number"},
                "min_term": {"type": "integer"},
                "max_term": {"type": "integer"},
                "max_age": {"type": "integer"},
                "special_requirements": {"type": "string"},
                "required_documents": {"type": "array", "items": {"type": "string"}},
                "available_slots": {"type": "integer"},
                "duration_months": {"type": "integer"},
                "required_hours": {"type": "number"}
            }
        },
        "SubmitApplicationRequest": {
            "type": "object",
            "required": ["full_name", "national_id", "email", "birth_date", "category", "target_program", "scholarship_type"],
            "properties": {
                "full_name": {"type": "string"},
                "national_id": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "birth_date": {"type": "string", "format": "date-time"},
                "marital_status": {"type": "string"},
                "category": {"type": "string"},
                "target_program": {"type": "string"},
                "current_term": {"type": "integer"},
                "cumulative_average": {"type": "number"},
                "high_school_average": {"type": "number"},
                "approved_courses": {"type": "integer"},
                "enrolled_credits": {"type": "integer"},
                "scholarship_type": {"type": "string"},
                "subtype": {"type": "string"},
                "documents": {"type": "array", "items": {"$ref": "#/definitions/DocumentInput"}}
            }
        },
        "DocumentInput": {
            "type": "object",
            "properties": {
                "document_type": {"type": "string"},
                "storage_ref": {"type": "string"}
            }
        },
        "CreateSlotRequest": {
            "type": "object",
            "required": ["subject", "department", "capacity", "academic_period", "period_start", "period_end", "supervisor_id"],
            "properties": {
                "subject": {"type": "string"},
                "department": {"type": "string"},
                "capacity": {"type": "integer"},
                "academic_period": {"type": "string"},
                "period_start": {"type": "string", "format": "date-time"},
                "period_end": {"type": "string", "format": "date-time"},
                "supervisor_id": {"type": "string"},
                "schedule": {"type": "array", "items": {"$ref": "#/definitions/TimeBlock"}}
            }
        },
        "TimeBlock": {
            "type": "object",
            "properties": {
                "day": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
            }
        },
        "SubmitReportRequest": {
            "type": "object",
            "required": ["beneficiary_id", "academic_period", "week"],
            "properties": {
                "beneficiary_id": {"type": "string"},
                "academic_period": {"type": "string"},
                "week": {"type": "integer"},
                "hours_worked": {"type": "number"},
                "period_objectives": {"type": "string"},
                "specific_goals": {"type": "string"},
                "planned_activities": {"type": "string"},
                "actual_activities": {"type": "string"},
                "detailed_description": {"type": "string"},
                "remarks": {"type": "string"}
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
