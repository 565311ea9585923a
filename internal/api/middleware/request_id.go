package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the correlation ID on both the
// inbound request (if the caller already has one) and the response.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
)

// actor identifies the bearer token subject behind a request, for audit
// logging. The admin surface serves a single operator role (spec.md §6),
// so there is no separate username/roles split left to carry here.
type actor struct {
	subject string
}

// RequestID assigns a correlation ID to every request: reuses one supplied
// by the caller, otherwise mints a UUIDv7, and echoes it back on the
// response header so a caller and this service agree on one trace ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey, rid))
		c.Next()
	}
}

// GetRequestID returns the correlation ID set by RequestID, or "" if none
// was set (e.g. the context did not flow through that middleware).
func GetRequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

// SetUserContext records the authenticated token subject for downstream
// audit logging. JWTAuthWithConfig calls this once per request after
// validating the bearer token.
func SetUserContext(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, actorKey, actor{subject: subject})
}

// GetActor returns the token subject set by SetUserContext, or "" if the
// request was never authenticated (e.g. a public route).
func GetActor(ctx context.Context) string {
	a, _ := ctx.Value(actorKey).(actor)
	return a.subject
}
