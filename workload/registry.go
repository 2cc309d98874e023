package workload

import (
	"sync"
	"time"

	apperrors "github.com/skillsenselab/dispatch/errors"
	"github.com/skillsenselab/dispatch/logger"
)

// Record is a point-in-time snapshot of one workload's lifecycle.
type Record struct {
	Workload   *Workload
	State      State
	Assignee   string
	Payload    string
	FailReason string
	Timestamps map[State]time.Time
}

// record is the registry-owned mutable lifecycle state. The registry is the
// sole mutator; everything handed out is a copy.
type record struct {
	workload   *Workload
	state      State
	assignee   string
	payload    string
	failReason string
	timestamps map[State]time.Time
}

func (rec *record) snapshot() Record {
	ts := make(map[State]time.Time, len(rec.timestamps))
	for k, v := range rec.timestamps {
		ts[k] = v
	}
	return Record{
		Workload:   rec.workload,
		State:      rec.state,
		Assignee:   rec.assignee,
		Payload:    rec.payload,
		FailReason: rec.failReason,
		Timestamps: ts,
	}
}

// Registry owns one lifecycle record per catalog entry and is the only
// shared mutable state in the process. The guard is held only across a
// state inspection-and-update, never across network I/O: byte streaming
// happens outside the lock and re-enters it for the final transition.
type Registry struct {
	mu      sync.Mutex
	records []*record
	done    chan struct{}
	log     *logger.Logger
}

// NewRegistry wraps every catalog entry in an Unassigned lifecycle record.
func NewRegistry(catalog *Catalog, log *logger.Logger) *Registry {
	records := make([]*record, catalog.Len())
	now := time.Now()
	for i := 0; i < catalog.Len(); i++ {
		records[i] = &record{
			workload:   catalog.At(i),
			state:      StateUnassigned,
			timestamps: map[State]time.Time{StateUnassigned: now},
		}
	}
	return &Registry{
		records: records,
		done:    make(chan struct{}),
		log:     log.WithComponent("registry"),
	}
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.records)
}

// at returns the record for idx. An out-of-range index is a programming
// error, not a request error.
func (r *Registry) at(idx int) *record {
	if idx < 0 || idx >= len(r.records) {
		panic(apperrors.InternalInvariantViolation("workload index out of range"))
	}
	return r.records[idx]
}

// enter moves a record into a new state and stamps the transition.
// Callers hold r.mu.
func (r *Registry) enter(rec *record, to State) {
	from := rec.state
	rec.state = to
	rec.timestamps[to] = time.Now()

	r.log.Debug("workload transition", map[string]interface{}{
		logger.FieldWorkload: rec.workload.Name,
		logger.FieldClient:   rec.assignee,
		logger.FieldState:    string(to),
		"from":               string(from),
	})

	if to.Terminal() {
		r.checkAllTerminalLocked()
	}
}

// checkAllTerminalLocked closes the done channel once every record is
// terminal. Callers hold r.mu.
func (r *Registry) checkAllTerminalLocked() {
	for _, rec := range r.records {
		if !rec.state.Terminal() {
			return
		}
	}
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// Assign moves Unassigned → Assigned{client}. It fails if the record is
// already assigned or if the client already holds another live workload
// (at most one non-terminal assignment per client).
func (r *Registry) Assign(idx int, client string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.at(idx)
	if rec.state != StateUnassigned {
		return apperrors.InvalidTransition(rec.workload.Name, string(rec.state), string(StateAssigned))
	}
	for _, other := range r.records {
		if other != rec && other.assignee == client && !other.state.Terminal() && other.state.Assigned() {
			return apperrors.Conflict("client " + client + " already holds workload " + other.workload.Name)
		}
	}

	rec.assignee = client
	r.enter(rec, StateAssigned)
	return nil
}

// SelectForClient is the linearized dispatch-queue selection: the sticky
// assignment for client if one is live, otherwise the lowest-index
// Unassigned workload (assigned as a side effect), otherwise exhausted.
func (r *Registry) SelectForClient(client string) (int, *Workload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for idx, rec := range r.records {
		if rec.assignee == client && !rec.state.Terminal() && rec.state.Assigned() {
			return idx, rec.workload, true
		}
	}
	for idx, rec := range r.records {
		if rec.state == StateUnassigned {
			rec.assignee = client
			r.enter(rec, StateAssigned)
			return idx, rec.workload, true
		}
	}
	return 0, nil, false
}

// MarkDownloading moves Assigned{client} → Downloading{client}.
func (r *Registry) MarkDownloading(idx int, client string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.at(idx)
	if rec.assignee != client || rec.state != StateAssigned {
		return apperrors.InvalidTransition(rec.workload.Name, string(rec.state), string(StateDownloading))
	}
	r.enter(rec, StateDownloading)
	return nil
}

// MarkBooting moves a record into Booting{client}. Two edges race into this
// state — download completion and the beacon boot notification — so any of
// Assigned, Downloading, or Booting is accepted; a repeat is a no-op. The
// prior state is returned.
func (r *Registry) MarkBooting(idx int, client string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.at(idx)
	if rec.assignee != client {
		return rec.state, apperrors.InvalidTransition(rec.workload.Name, string(rec.state), string(StateBooting))
	}
	prior := rec.state
	switch prior {
	case StateBooting:
		return prior, nil
	case StateAssigned, StateDownloading:
		r.enter(rec, StateBooting)
		return prior, nil
	}
	return prior, apperrors.InvalidTransition(rec.workload.Name, string(prior), string(StateBooting))
}

// MarkReported moves Booting{client} → Reported{client, payload}. A second
// report is rejected: the workload is already Reported or beyond.
func (r *Registry) MarkReported(idx int, client, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.at(idx)
	if rec.assignee != client || rec.state != StateBooting {
		return apperrors.InvalidTransition(rec.workload.Name, string(rec.state), string(StateReported))
	}
	rec.payload = payload
	r.enter(rec, StateReported)
	return nil
}

// MarkFinished moves Reported → Finished after the sink acknowledged.
func (r *Registry) MarkFinished(idx int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.at(idx)
	if rec.state != StateReported {
		return apperrors.InvalidTransition(rec.workload.Name, string(rec.state), string(StateFinished))
	}
	r.enter(rec, StateFinished)
	return nil
}

// MarkFailed is the universal fallthrough: any non-terminal state → Failed
// with a reason. Failing an already-terminal record is rejected.
func (r *Registry) MarkFailed(idx int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.at(idx)
	if rec.state.Terminal() {
		return apperrors.InvalidTransition(rec.workload.Name, string(rec.state), string(StateFailed))
	}
	rec.failReason = reason
	r.enter(rec, StateFailed)
	return nil
}

// Observe returns a snapshot of the record at idx.
func (r *Registry) Observe(idx int) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.at(idx).snapshot()
}

// FindAssigned returns the live record assigned to client, if any.
func (r *Registry) FindAssigned(client string) (int, Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for idx, rec := range r.records {
		if rec.assignee == client && !rec.state.Terminal() && rec.state.Assigned() {
			return idx, rec.snapshot(), true
		}
	}
	return 0, Record{}, false
}

// AllTerminal reports whether every record is Finished or Failed.
func (r *Registry) AllTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if !rec.state.Terminal() {
			return false
		}
	}
	return true
}

// Done returns a channel closed when every record has reached a terminal
// state.
func (r *Registry) Done() <-chan struct{} {
	return r.done
}

// Summary returns a state → count breakdown for logging and exit status.
func (r *Registry) Summary() map[State]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[State]int)
	for _, rec := range r.records {
		out[rec.state]++
	}
	return out
}
