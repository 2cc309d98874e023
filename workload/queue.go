package workload

// Queue is the stateless dispatch selector over a Registry. A client is
// keyed by its network address and receives at most one live workload:
// repeat requests (HEAD then GET, or a retry across a reboot within the
// same session) return the same assignment until it reaches a terminal
// state.
type Queue struct {
	registry *Registry
}

// Assignment is the result of a successful queue selection.
type Assignment struct {
	Index    int
	Workload *Workload
}

// NewQueue creates a Queue over the given registry.
func NewQueue(registry *Registry) *Queue {
	return &Queue{registry: registry}
}

// Next selects the workload for the requesting client:
//
//  1. the client's existing live assignment (sticky), else
//  2. the lowest-index Unassigned workload, assigned to the client, else
//  3. ok=false — the queue is exhausted and the caller serves the
//     shutdown artifact.
//
// Selection is linearized by the registry guard: concurrent callers receive
// distinct workloads or an exhausted result, never the same one.
func (q *Queue) Next(client string) (Assignment, bool) {
	idx, wl, ok := q.registry.SelectForClient(client)
	if !ok {
		return Assignment{}, false
	}
	return Assignment{Index: idx, Workload: wl}, true
}

// Exhausted reports whether the queue has nothing left for any client that
// does not already hold an assignment. Once true it stays true: records
// never regress to Unassigned.
func (q *Queue) Exhausted() bool {
	summary := q.registry.Summary()
	return summary[StateUnassigned] == 0
}
