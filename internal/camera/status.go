package camera

import "time"

// Status is a point-in-time report for one camera.
type Status struct {
	ID         string
	Name       string
	Host       string
	Configured bool
	State      State
	Sequence   uint64
	HasFrame   bool
	LastFrame  time.Time
	StartedAt  time.Time
	Err        error

	// LastUpdateAge is the time since the last published frame, zero
	// before the first one.
	LastUpdateAge time.Duration
}

// StatusOf reports w's current state. A nil worker reports unknown.
func StatusOf(cfg Config, w *Worker) Status {
	st := Status{
		ID:         cfg.ID,
		Name:       cfg.DisplayName(),
		Host:       cfg.Host(),
		Configured: true,
		State:      StateUnknown,
	}
	if w == nil {
		return st
	}
	snap := w.Buffer().Load()
	st.State = snap.State
	st.Sequence = snap.Sequence
	st.HasFrame = snap.Frame != nil
	st.LastFrame = snap.UpdatedAt
	st.LastUpdateAge = snap.Age(time.Now())
	st.StartedAt = w.StartedAt()
	st.Err = snap.Err
	return st
}
