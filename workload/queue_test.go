package workload_test

import (
	"sync"
	"testing"

	"github.com/skillsenselab/dispatch/workload"
)

func buildQueue(t *testing.T, names ...string) (*workload.Queue, *workload.Registry) {
	t.Helper()
	r := buildRegistry(t, names...)
	return workload.NewQueue(r), r
}

func TestQueue_CatalogOrder(t *testing.T) {
	q, _ := buildQueue(t, "a.efi", "b.efi", "c.efi")

	got, ok := q.Next("x")
	if !ok {
		t.Fatal("expected assignment")
	}
	if got.Index != 0 || got.Workload.Name != "a.efi" {
		t.Errorf("expected lowest-index a.efi, got %d %s", got.Index, got.Workload.Name)
	}
}

func TestQueue_StickyAssignment(t *testing.T) {
	q, _ := buildQueue(t, "a.efi", "b.efi")

	first, ok := q.Next("x")
	if !ok {
		t.Fatal("expected assignment")
	}
	// A retried HEAD, and the GET that follows, return the same workload.
	for i := 0; i < 3; i++ {
		again, ok := q.Next("x")
		if !ok {
			t.Fatal("expected sticky assignment")
		}
		if again.Index != first.Index {
			t.Fatalf("expected sticky index %d, got %d", first.Index, again.Index)
		}
	}
}

func TestQueue_StickyAcrossStates(t *testing.T) {
	q, r := buildQueue(t, "a.efi", "b.efi")

	first, _ := q.Next("x")
	r.MarkDownloading(first.Index, "x")
	r.MarkBooting(first.Index, "x")

	// A reboot within the same session re-requests; still the same workload.
	again, ok := q.Next("x")
	if !ok || again.Index != first.Index {
		t.Errorf("expected sticky assignment across states, got %v %v", again, ok)
	}
}

func TestQueue_DistinctClientsDistinctWorkloads(t *testing.T) {
	q, _ := buildQueue(t, "a.efi", "b.efi")

	ax, _ := q.Next("x")
	ay, ok := q.Next("y")
	if !ok {
		t.Fatal("expected assignment for y")
	}
	if ax.Index == ay.Index {
		t.Errorf("distinct clients must receive distinct workloads, both got %d", ax.Index)
	}
}

func TestQueue_NextAfterTerminal(t *testing.T) {
	q, r := buildQueue(t, "a.efi", "b.efi")

	first, _ := q.Next("x")
	r.MarkFailed(first.Index, workload.ReasonTransferAborted)

	second, ok := q.Next("y")
	if !ok {
		t.Fatal("expected next workload for y")
	}
	if second.Index != 1 {
		t.Errorf("expected index 1, got %d", second.Index)
	}
}

func TestQueue_Exhaustion(t *testing.T) {
	q, r := buildQueue(t, "a.efi")

	first, _ := q.Next("x")
	r.MarkDownloading(first.Index, "x")
	r.MarkBooting(first.Index, "x")
	r.MarkReported(first.Index, "x", "ok")
	r.MarkFinished(first.Index)

	// Exhaustion is stable: every caller gets exhausted from now on.
	for _, client := range []string{"x", "y", "z"} {
		if _, ok := q.Next(client); ok {
			t.Errorf("expected exhausted for %s", client)
		}
	}
	if !q.Exhausted() {
		t.Error("expected Exhausted() to report true")
	}
}

func TestQueue_ExhaustedForNewcomersWhileLive(t *testing.T) {
	q, _ := buildQueue(t, "a.efi")

	if _, ok := q.Next("x"); !ok {
		t.Fatal("expected assignment for x")
	}
	// The only workload is live and owned by x: newcomers are exhausted,
	// x itself still gets its sticky assignment.
	if _, ok := q.Next("y"); ok {
		t.Error("expected exhausted for y")
	}
	if _, ok := q.Next("x"); !ok {
		t.Error("expected sticky assignment for x")
	}
}

func TestQueue_ConcurrentSelectionLinearized(t *testing.T) {
	const clients = 8
	q, _ := buildQueue(t, "a.efi", "b.efi", "c.efi", "d.efi")

	var wg sync.WaitGroup
	results := make([]int, clients)
	oks := make([]bool, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, ok := q.Next(string(rune('A' + i)))
			results[i], oks[i] = a.Index, ok
		}(i)
	}
	wg.Wait()

	seen := make(map[int]int)
	granted := 0
	for i := 0; i < clients; i++ {
		if oks[i] {
			granted++
			seen[results[i]]++
		}
	}
	if granted != 4 {
		t.Errorf("expected exactly 4 grants for 4 workloads, got %d", granted)
	}
	for idx, count := range seen {
		if count != 1 {
			t.Errorf("workload %d granted %d times", idx, count)
		}
	}
}
