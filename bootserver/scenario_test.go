package bootserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/dispatch/beacon"
	"github.com/skillsenselab/dispatch/bootserver"
	"github.com/skillsenselab/dispatch/shutdown"
	"github.com/skillsenselab/dispatch/sink"
	"github.com/skillsenselab/dispatch/workload"
	"github.com/skillsenselab/dispatch/workload/testutil"
)

// recordingFiler collects results in order.
type recordingFiler struct {
	mu      sync.Mutex
	results []sink.Result
}

func (f *recordingFiler) File(_ context.Context, result sink.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

// TestFullSession drives a complete dispatch session over one engine with
// both the boot and beacon surfaces mounted: two workloads are fetched,
// booted, and reported by the same client, after which the queue serves the
// shutdown artifact and every record is terminal.
func TestFullSession(t *testing.T) {
	sources := []workload.Source{
		testutil.PatternSource("a.efi", workload.SourceTypeEFI, 10),
		testutil.PatternSource("b.iso", workload.SourceTypeISO, 20),
	}
	cat, err := workload.BuildCatalog(workload.Config{}, sources, testLog())
	if err != nil {
		t.Fatalf("BuildCatalog failed: %v", err)
	}
	registry := workload.NewRegistry(cat, testLog())
	queue := workload.NewQueue(registry)
	filer := &recordingFiler{}
	dispatcher := sink.NewDispatcher(filer, registry, 2, testLog())

	engine := gin.New()
	bootserver.Register(engine, queue, registry, testLog())
	beacon.Register(engine, registry, dispatcher, testLog())

	const client = "10.0.0.1"
	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.RemoteAddr = client + ":39000"
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		rr := httptest.NewRecorder()
		engine.ServeHTTP(rr, req)
		return rr
	}

	wantSizes := []string{"10", "20"}
	wantTypes := []string{workload.ServedTypeEFI, workload.ServedTypeISO}
	for round := 0; round < 2; round++ {
		head := do(http.MethodHead, "/", "")
		if got := head.Header().Get("Content-Length"); got != wantSizes[round] {
			t.Fatalf("round %d: expected size %s, got %s", round, wantSizes[round], got)
		}
		if got := head.Header().Get("Content-Type"); got != wantTypes[round] {
			t.Fatalf("round %d: expected type %s, got %s", round, wantTypes[round], got)
		}

		get := do(http.MethodGet, "/", "")
		if get.Code != http.StatusOK || get.Header().Get("Content-Length") != wantSizes[round] {
			t.Fatalf("round %d: bad GET: code=%d len=%s", round, get.Code, get.Header().Get("Content-Length"))
		}

		if rr := do(http.MethodPost, "/beacon/boot", ""); rr.Code != http.StatusOK {
			t.Fatalf("round %d: boot beacon failed: %d %s", round, rr.Code, rr.Body.String())
		}
		if rr := do(http.MethodPost, "/beacon/report", `{"summary":"ok"}`); rr.Code != http.StatusAccepted {
			t.Fatalf("round %d: report beacon failed: %d %s", round, rr.Code, rr.Body.String())
		}

		// The sink runs off the request path; wait for it so the next
		// round gets a fresh assignment.
		if err := dispatcher.Drain(context.Background()); err != nil {
			t.Fatalf("round %d: drain failed: %v", round, err)
		}
	}

	head := do(http.MethodHead, "/", "")
	if got := head.Header().Get("Content-Type"); got != shutdown.ContentType {
		t.Fatalf("expected shutdown artifact after exhaustion, got %s", got)
	}

	if !registry.AllTerminal() {
		t.Error("expected all records terminal")
	}
	select {
	case <-registry.Done():
	default:
		t.Error("expected Done channel closed")
	}

	if len(filer.results) != 2 {
		t.Fatalf("expected 2 sink invocations, got %d", len(filer.results))
	}
	if filer.results[0].Workload != "a.efi" || filer.results[1].Workload != "b.iso" {
		t.Errorf("unexpected sink order: %+v", filer.results)
	}
	summary := registry.Summary()
	if summary[workload.StateFinished] != 2 {
		t.Errorf("expected 2 Finished, got %+v", summary)
	}
}
