package respond

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"github.com/dmitrijs2005/bookclub/internal/incidentlog"
	"github.com/dmitrijs2005/bookclub/internal/logging"
)

// Responder maps errors to status codes and envelopes. Details go to the
// logger and, for server-side failures, to the incident sink.
type Responder struct {
	logger logging.Logger
	sink   incidentlog.Sink
	now    func() time.Time
}

func NewResponder(logger logging.Logger, sink incidentlog.Sink) *Responder {
	if sink == nil {
		sink = incidentlog.Discard{}
	}
	return &Responder{logger: logger, sink: sink, now: time.Now}
}

// FromError decides the status and envelope for err.
func (r *Responder) FromError(ctx context.Context, err error) (int, Envelope) {
	var re *Error
	switch {
	case errors.As(err, &re):
		if re.Cause != nil {
			r.record(ctx, re.Status, re.Message, re.Cause)
		}
		return re.Status, Fail(re.Message)
	case errors.Is(err, common.ErrSecurity):
		r.record(ctx, http.StatusInternalServerError, common.GenericErrorMessage, err)
		return http.StatusInternalServerError, Fail(common.GenericErrorMessage)
	case errors.Is(err, common.ErrProcedure):
		r.record(ctx, http.StatusInternalServerError, common.ProcedureErrorMessage, err)
		return http.StatusInternalServerError, Fail(common.ProcedureErrorMessage)
	default:
		r.record(ctx, http.StatusInternalServerError, common.GenericErrorMessage, err)
		return http.StatusInternalServerError, Fail(common.GenericErrorMessage)
	}
}

// Error writes the envelope for err.
func (r *Responder) Error(w http.ResponseWriter, req *http.Request, err error) {
	status, env := r.FromError(req.Context(), err)
	Write(w, status, env)
}

func (r *Responder) record(ctx context.Context, status int, message string, cause error) {
	if status < http.StatusInternalServerError {
		r.logger.Warn(ctx, message, "status", status, "error", cause.Error())
		return
	}

	r.logger.Error(ctx, message, "status", status, "error", cause.Error())

	body := fmt.Sprintf("status=%d message=%q error=%q", status, message, cause.Error())
	if id, ok := logging.RequestIDFromContext(ctx); ok {
		body += fmt.Sprintf(" request_id=%s", id)
	}
	if err := r.sink.Write(ctx, incidentlog.EntryName(r.now()), []byte(body+"\n")); err != nil {
		r.logger.Warn(ctx, "incident log write failed", "error", err.Error())
	}
}
