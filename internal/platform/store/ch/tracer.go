package ch

import (
	"time"

	"ghsnapshot/internal/platform/logger"
)

// Tracer logs batch inserts and queries when SQL-level logging is enabled.
// A nil *Tracer is valid and logs nothing.
type Tracer struct {
	log logger.Logger
}

// NewTracer builds a Tracer bound to l.
func NewTracer(l logger.Logger) *Tracer { return &Tracer{log: l} }

func (t *Tracer) logInsert(table string, rows int, dur time.Duration) {
	if t == nil {
		return
	}
	t.log.Debug().Str("table", table).Int("rows", rows).Dur("took", dur).Msg("ch.insert")
}

func (t *Tracer) logQuery(sql string, dur time.Duration, err error) {
	if t == nil {
		return
	}
	ev := t.log.Debug()
	if err != nil {
		ev = t.log.Warn().Err(err)
	}
	ev.Str("sql", sql).Dur("took", dur).Msg("ch.query")
}
