package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/beatdm/pkg/errcode"
)

// Response represents a standard API response
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success sends a success response
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	SuccessWithStatus(ctx, c, http.StatusOK, data)
}

// Created sends a 201 response
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	SuccessWithStatus(ctx, c, http.StatusCreated, data)
}

// SuccessWithStatus sends a success response with the given HTTP status
func SuccessWithStatus(ctx context.Context, c *app.RequestContext, status int, data interface{}) {
	c.JSON(status, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Error sends an error response, using the HTTP status carried by the error
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithCode(ctx, c, errcode.From(err))
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(e.Status(), Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}
