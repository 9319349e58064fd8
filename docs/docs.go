// Package docs registers the OpenAPI description served under /swagger.
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
        "/checkout": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["checkout"],
                "summary": "Create an order from selected products",
                "parameters": [
                    {"type": "string", "description": "caller", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "integer", "description": "1 to answer with a redirect to the payment page", "name": "redirect", "in": "query"},
                    {"description": "selection", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/main.CheckoutRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/main.CheckoutResponse"}},
                    "303": {"description": "See Other"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}}
                }
            }
        },
        "/payments/notify": {
            "post": {
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["text/plain"],
                "tags": ["payments"],
                "summary": "Asynchronous payment notification",
                "responses": {"200": {"description": "success or failure", "schema": {"type": "string"}}}
            }
        },
        "/payments/return": {
            "get": {
                "produces": ["text/html"],
                "tags": ["payments"],
                "summary": "Page shown after the buyer returns from the payment page",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/orders/user/{user_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List a user's orders, newest first",
                "parameters": [
                    {"type": "string", "description": "caller", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "user id", "name": "user_id", "in": "path", "required": true},
                    {"type": "integer", "description": "page size (max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/main.OrderListResponse"}}}
            }
        },
        "/orders/{number}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get an order with its items",
                "parameters": [
                    {"type": "string", "description": "caller", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.OrderResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}}
                }
            }
        },
        "/orders/{number}/refund": {
            "post": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Refund an order in full",
                "parameters": [
                    {"type": "string", "description": "caller", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.RefundResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/main.RefundResponse"}}
                }
            }
        },
        "/orders/{number}/cancel": {
            "post": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Cancel, ship or complete an order",
                "parameters": [
                    {"type": "string", "description": "caller, required to cancel", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.OrderResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}}
                }
            }
        },
        "/orders/{number}/ship": {
            "post": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Cancel, ship or complete an order",
                "parameters": [
                    {"type": "string", "description": "order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.OrderResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}}
                }
            }
        },
        "/orders/{number}/complete": {
            "post": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Cancel, ship or complete an order",
                "parameters": [
                    {"type": "string", "description": "order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.OrderResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}}
                }
            }
        },
        "/orders/{number}/tracking": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Carrier route information for an order",
                "parameters": [
                    {"type": "string", "description": "caller", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "order number", "name": "number", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/httpx.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "httpx.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "error": {"type": "string", "example": "validation_error"},
                "message": {"type": "string", "example": "address_id is required"}
            }
        },
        "main.CheckoutLine": {
            "type": "object",
            "properties": {
                "product_id": {"type": "string", "example": "4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"},
                "quantity": {"type": "integer", "example": 2},
                "price": {"type": "string", "example": "100.00"},
                "source": {"type": "string", "enum": ["cart", "direct"], "example": "cart"}
            }
        },
        "main.CheckoutRequest": {
            "type": "object",
            "properties": {
                "address_id": {"type": "string", "example": "b2f5ff47-2b1e-4f22-8a96-5f3c1f2f2e7b"},
                "payment_method": {"type": "string", "enum": ["wechat", "alipay", "cod"], "example": "alipay"},
                "remark": {"type": "string", "example": "leave at the door"},
                "lines": {"type": "array", "items": {"$ref": "#/definitions/main.CheckoutLine"}}
            }
        },
        "main.CheckoutResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "message": {"type": "string", "example": "order created"},
                "order": {"$ref": "#/definitions/order.Order"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/order.Item"}},
                "pay_url": {"type": "string"}
            }
        },
        "main.OrderResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "message": {"type": "string"},
                "order": {"$ref": "#/definitions/order.Order"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/order.Item"}},
                "applied": {"type": "boolean"}
            }
        },
        "main.OrderListResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "orders": {"type": "array", "items": {"$ref": "#/definitions/order.Order"}},
                "limit": {"type": "integer", "example": 20},
                "offset": {"type": "integer", "example": 0}
            }
        },
        "main.RefundResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "message": {"type": "string"},
                "order": {"$ref": "#/definitions/order.Order"},
                "result": {"type": "object"}
            }
        },
        "order.Shipping": {
            "type": "object",
            "properties": {
                "recipient": {"type": "string"},
                "phone": {"type": "string"},
                "province": {"type": "string"},
                "city": {"type": "string"},
                "district": {"type": "string"},
                "detail": {"type": "string"}
            }
        },
        "order.Order": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "order_number": {"type": "string", "example": "1718000000123A1B2C3"},
                "user_id": {"type": "string"},
                "address_id": {"type": "string"},
                "shipping": {"$ref": "#/definitions/order.Shipping"},
                "total_amount": {"type": "string", "example": "200"},
                "status": {"type": "string", "enum": ["pending_payment", "paid", "shipped", "completed", "cancelled", "refunded"]},
                "payment_method": {"type": "string"},
                "trade_no": {"type": "string"},
                "remark": {"type": "string"},
                "created_at": {"type": "string"},
                "paid_at": {"type": "string"},
                "shipped_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "cancelled_at": {"type": "string"},
                "refunded_at": {"type": "string"}
            }
        },
        "order.Item": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "order_id": {"type": "string"},
                "product_id": {"type": "string"},
                "product_name": {"type": "string"},
                "price": {"type": "string", "example": "100"},
                "quantity": {"type": "integer", "example": 1},
                "total_price": {"type": "string", "example": "100"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Checkout service API",
	Description:      "Cart to order checkout, payment gateway callbacks and refunds.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
