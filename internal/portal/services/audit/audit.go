package audit

import (
	"github.com/google/uuid"

	"github.com/haukened/portalgate/internal/portal/common/clock"
	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// messagePrefix mirrors how the module has always labelled its entries in
// the host activity log.
const messagePrefix = "Menu Remover: "

// Sink persists activity records.
type Sink interface {
	Append(rec domain.ActivityRecord) error
}

// Recorder writes fire-and-forget activity records. A failing sink is
// logged at warn and otherwise ignored; Record never blocks a caller on an
// error.
type Recorder struct {
	sink   Sink
	clock  clock.Clock
	logger log.Logger
	newID  func() string
}

// Options configures a Recorder. Sink may be nil, in which case records
// only reach the logger.
type Options struct {
	Sink   Sink
	Clock  clock.Clock
	Logger log.Logger
}

func New(opts Options) *Recorder {
	r := &Recorder{
		sink:   opts.Sink,
		clock:  opts.Clock,
		logger: opts.Logger,
		newID:  uuid.NewString,
	}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	if r.logger == nil {
		r.logger = log.NewNoopLogger()
	}
	return r
}

// Record logs msg with fields and appends it to the sink.
func (r *Recorder) Record(msg string, fields map[string]any) {
	if r == nil {
		return
	}
	rec := domain.ActivityRecord{
		ID:      r.newID(),
		Time:    r.clock.Now().UTC(),
		Message: messagePrefix + msg,
		Fields:  fields,
	}
	r.logger.Info(fields, rec.Message)
	if r.sink == nil {
		return
	}
	if err := r.sink.Append(rec); err != nil {
		r.logger.Warn(map[string]any{"error": err.Error(), "message": rec.Message}, "Failed to write activity record")
	}
}
