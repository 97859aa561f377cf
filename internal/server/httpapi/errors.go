package httpapi

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/hatemjaber/image-resize-server/internal/apperr"
)

const (
	unknownMessage    = "An unknown error occurred"
	decryptionMessage = "Invalid or corrupted reference"
)

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindClientInput:
		return consts.StatusBadRequest
	case apperr.KindNotFound:
		return consts.StatusNotFound
	case apperr.KindAuth:
		return consts.StatusUnauthorized
	default:
		return consts.StatusInternalServerError
	}
}

// envelope renders ae as {message, cause, errorCode, ...context}. Context
// keys never replace the fixed fields.
func envelope(ae *apperr.Error) map[string]any {
	body := make(map[string]any, len(ae.Context)+3)
	for k, v := range ae.Context {
		body[k] = v
	}
	body["message"] = ae.Message
	body["cause"] = ae.Cause
	body["errorCode"] = ae.Code
	return body
}

// normalize maps err to the record the client sees. Anything that is not an
// *apperr.Error becomes a generic UNKNOWN_ERROR, and every decryption
// failure gets the same message and no cause.
func normalize(err error) *apperr.Error {
	ae, ok := apperr.As(err)
	if !ok {
		return apperr.New(apperr.KindServerInternal, apperr.CodeUnknown, unknownMessage)
	}
	if ae.Code == apperr.CodeDecryptionFailed {
		return apperr.New(apperr.KindClientInput, apperr.CodeDecryptionFailed, decryptionMessage)
	}
	return ae
}

func (s *Server) writeError(ctx context.Context, c *app.RequestContext, err error) {
	ae := normalize(err)
	if ae.Kind == apperr.KindServerInternal {
		s.logger.Error(ctx, "request failed", "path", string(c.Request.URI().Path()), "code", ae.Code, "error", err)
	} else {
		s.logger.Debug(ctx, "request rejected", "path", string(c.Request.URI().Path()), "code", ae.Code, "error", err)
	}
	c.AbortWithStatusJSON(statusOf(ae.Kind), envelope(ae))
}

func (s *Server) notFound(ctx context.Context, c *app.RequestContext) {
	s.writeError(ctx, c, apperr.NotFound("route not found"))
}
