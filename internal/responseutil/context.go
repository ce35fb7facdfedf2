// Package responseutil lets middleware reach the response builder
// without importing the response package.
package responseutil

import (
	"context"
	"net/http"
)

// ResponseBuilder is the part of the builder middleware needs
type ResponseBuilder interface {
	WriteError(w http.ResponseWriter, r *http.Request, err error)
}

type contextKey string

const responseBuilderKey contextKey = "response_builder"

// GetBuilder extracts the response builder from the context, or nil
func GetBuilder(ctx context.Context) interface{} {
	return ctx.Value(responseBuilderKey)
}

// SetBuilder stores a response builder in the context
func SetBuilder(ctx context.Context, builder interface{}) context.Context {
	return context.WithValue(ctx, responseBuilderKey, builder)
}
