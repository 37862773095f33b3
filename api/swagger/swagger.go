package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Roster API",
        "description": "Student roster with a remote backend and a local mirror fallback",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Alunos", "description": "Student roster"},
        {"name": "Turmas", "description": "Classes"},
        {"name": "Matriculas", "description": "Enrollment, backend only"},
        {"name": "Preferencias", "description": "Sticky view preferences"},
        {"name": "Export", "description": "CSV, JSON and PDF exports"},
        {"name": "Status", "description": "Backend reachability"}
    ],
    "paths": {
        "/turmas": {
            "get": {
                "tags": ["Turmas"],
                "summary": "List classes",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/alunos": {
            "get": {
                "tags": ["Alunos"],
                "summary": "List students",
                "parameters": [
                    {"name": "nome", "in": "query", "type": "string"},
                    {"name": "turma_id", "in": "query", "type": "integer"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["ativo", "inativo"]},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["nome", "idade"]}
                ],
                "responses": {
                    "200": {"description": "OK; meta.source tells remote from local", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Alunos"],
                "summary": "Create student",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alunos/search": {
            "get": {
                "tags": ["Alunos"],
                "summary": "Debounced student search",
                "parameters": [
                    {"name": "nome", "in": "query", "type": "string"},
                    {"name": "turma_id", "in": "query", "type": "integer"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/alunos/{id}": {
            "put": {
                "tags": ["Alunos"],
                "summary": "Update student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Alunos"],
                "summary": "Delete student",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matriculas": {
            "post": {
                "tags": ["Matriculas"],
                "summary": "Enroll a student in a class",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollmentRequest"}}],
                "responses": {
                    "201": {"description": "Enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Backend unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/indicadores": {
            "get": {
                "tags": ["Alunos"],
                "summary": "Indicators for the current view",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/preferencias/sort": {
            "get": {
                "tags": ["Preferencias"],
                "summary": "Current sort preference",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Preferencias"],
                "summary": "Update sort preference",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"type": "object", "properties": {"sort": {"type": "string", "enum": ["nome", "idade"]}}}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/export/alunos.csv": {
            "get": {"tags": ["Export"], "summary": "Current view as CSV", "produces": ["text/csv"], "responses": {"200": {"description": "File"}}}
        },
        "/export/alunos.json": {
            "get": {"tags": ["Export"], "summary": "Current view as JSON", "produces": ["application/json"], "responses": {"200": {"description": "File"}}}
        },
        "/export/alunos.pdf": {
            "get": {"tags": ["Export"], "summary": "Current view as PDF", "produces": ["application/pdf"], "responses": {"200": {"description": "File"}}}
        },
        "/exports": {
            "post": {
                "tags": ["Export"],
                "summary": "Queue an asynchronous export",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}],
                "responses": {"202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Export"],
                "summary": "Export job status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Export"],
                "summary": "Download a finished export via signed token",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/status": {
            "get": {
                "tags": ["Status"],
                "summary": "Backend reachability and fallback counters",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "StudentRequest": {
            "type": "object",
            "required": ["nome", "data_nascimento"],
            "properties": {
                "nome": {"type": "string", "minLength": 3, "maxLength": 80},
                "data_nascimento": {"type": "string", "format": "date"},
                "email": {"type": "string"},
                "status": {"type": "string", "enum": ["ativo", "inativo"]},
                "turma_id": {"type": "integer"},
                "turma": {"type": "string", "description": "Free-text class name, created when unknown"}
            }
        },
        "EnrollmentRequest": {
            "type": "object",
            "required": ["aluno_id", "turma_id"],
            "properties": {
                "aluno_id": {"type": "integer"},
                "turma_id": {"type": "integer"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "format": {"type": "string", "enum": ["csv", "json", "pdf"]},
                "nome": {"type": "string"},
                "turma_id": {"type": "integer"},
                "status": {"type": "string"},
                "sort": {"type": "string", "enum": ["nome", "idade"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "fields": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
