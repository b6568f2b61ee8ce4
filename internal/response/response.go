// Package response defines the uniform {code, message, data} envelope every
// endpoint returns.
package response

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Envelope is the wire format for all API responses.
type Envelope struct {
    Code    int    `json:"code"`
    Message string `json:"message"`
    Data    any    `json:"data,omitempty"`
}

// Success writes a 200 envelope with the given payload.
func Success(c echo.Context, data any) error {
    return c.JSON(http.StatusOK, Envelope{Code: http.StatusOK, Message: "Success", Data: data})
}

// Created writes a 201 envelope with the given payload.
func Created(c echo.Context, data any) error {
    return c.JSON(http.StatusCreated, Envelope{Code: http.StatusCreated, Message: "Created", Data: data})
}

// Fail writes an error envelope with the given status and message.  The
// message is the only detail exposed; internals stay in the server log.
func Fail(c echo.Context, status int, message string) error {
    return c.JSON(status, Envelope{Code: status, Message: message})
}
