package bootserver_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/dispatch/bootserver"
	"github.com/skillsenselab/dispatch/logger"
	"github.com/skillsenselab/dispatch/shutdown"
	"github.com/skillsenselab/dispatch/workload"
	"github.com/skillsenselab/dispatch/workload/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLog() *logger.Logger {
	return logger.NewDefault("test")
}

type fixture struct {
	engine   *gin.Engine
	registry *workload.Registry
	queue    *workload.Queue
}

func newFixture(t *testing.T, srcs ...*testutil.Source) *fixture {
	t.Helper()
	sources := make([]workload.Source, len(srcs))
	for i, s := range srcs {
		sources[i] = s
	}
	cat, err := workload.BuildCatalog(workload.Config{}, sources, testLog())
	if err != nil {
		t.Fatalf("BuildCatalog failed: %v", err)
	}
	registry := workload.NewRegistry(cat, testLog())
	queue := workload.NewQueue(registry)

	engine := gin.New()
	bootserver.Register(engine, queue, registry, testLog())
	return &fixture{engine: engine, registry: registry, queue: queue}
}

func (f *fixture) do(method, client string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", http.NoBody)
	req.RemoteAddr = client + ":40001"
	rr := httptest.NewRecorder()
	f.engine.ServeHTTP(rr, req)
	return rr
}

func TestHead_SizeAndType(t *testing.T) {
	f := newFixture(t,
		testutil.PatternSource("a.efi", workload.SourceTypeEFI, 10),
		testutil.PatternSource("b.iso", workload.SourceTypeISO, 20),
	)

	rr := f.do(http.MethodHead, "10.0.0.1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Length"); got != "10" {
		t.Errorf("expected Content-Length 10, got %s", got)
	}
	if got := rr.Header().Get("Content-Type"); got != workload.ServedTypeEFI {
		t.Errorf("expected %s, got %s", workload.ServedTypeEFI, got)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("HEAD must not stream a body, got %d bytes", rr.Body.Len())
	}

	if got := f.registry.Observe(0).State; got != workload.StateAssigned {
		t.Errorf("expected Assigned after HEAD, got %s", got)
	}
}

func TestHead_Sticky(t *testing.T) {
	f := newFixture(t,
		testutil.PatternSource("a.efi", workload.SourceTypeEFI, 10),
		testutil.PatternSource("b.iso", workload.SourceTypeISO, 20),
	)

	first := f.do(http.MethodHead, "10.0.0.1")
	for i := 0; i < 3; i++ {
		again := f.do(http.MethodHead, "10.0.0.1")
		if again.Header().Get("Content-Length") != first.Header().Get("Content-Length") ||
			again.Header().Get("Content-Type") != first.Header().Get("Content-Type") {
			t.Fatal("successive HEADs from the same client must be identical")
		}
	}
}

func TestGet_StreamsAndBoots(t *testing.T) {
	src := testutil.PatternSource("a.efi", workload.SourceTypeEFI, 1000)
	f := newFixture(t, src)

	rr := f.do(http.MethodGet, "10.0.0.1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.Len() != 1000 {
		t.Errorf("expected 1000 bytes, got %d", rr.Body.Len())
	}
	if got := rr.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("expected declared size header, got %s", got)
	}
	if got := string(rr.Body.Bytes()[:4]); got != string(src.Data[:4]) {
		t.Error("streamed bytes differ from source")
	}

	if got := f.registry.Observe(0).State; got != workload.StateBooting {
		t.Errorf("expected Booting after clean download, got %s", got)
	}
}

func TestGet_WithoutPriorHead(t *testing.T) {
	f := newFixture(t, testutil.PatternSource("a.efi", workload.SourceTypeEFI, 64))

	// A GET with no preceding HEAD is legal and uses the same queue path.
	rr := f.do(http.MethodGet, "10.0.0.2")
	if rr.Code != http.StatusOK || rr.Body.Len() != 64 {
		t.Fatalf("expected full stream, got code=%d len=%d", rr.Code, rr.Body.Len())
	}
}

func TestGet_TransferAbort(t *testing.T) {
	failing := testutil.PatternSource("a.efi", workload.SourceTypeEFI, 1000)
	failing.FailAfter = 500
	f := newFixture(t, failing, testutil.PatternSource("b.efi", workload.SourceTypeEFI, 10))

	f.do(http.MethodGet, "10.0.0.1")

	rec := f.registry.Observe(0)
	if rec.State != workload.StateFailed {
		t.Fatalf("expected Failed after aborted transfer, got %s", rec.State)
	}
	if rec.FailReason != workload.ReasonTransferAborted {
		t.Errorf("expected TransferAborted, got %q", rec.FailReason)
	}

	// Serving continues: the next client receives the next workload.
	rr := f.do(http.MethodHead, "10.0.0.2")
	if got := rr.Header().Get("Content-Length"); got != "10" {
		t.Errorf("expected next workload size 10, got %s", got)
	}
}

func TestExhausted_ServesShutdownArtifact(t *testing.T) {
	f := newFixture(t, testutil.PatternSource("a.efi", workload.SourceTypeEFI, 8))

	// Drive the only workload to terminal.
	f.do(http.MethodGet, "10.0.0.1")
	f.registry.MarkReported(0, "10.0.0.1", "ok")
	f.registry.MarkFinished(0)

	head := f.do(http.MethodHead, "10.0.0.1")
	wantLen := strconv.FormatInt(shutdown.Size(), 10)
	if got := head.Header().Get("Content-Length"); got != wantLen {
		t.Errorf("expected shutdown artifact size %s, got %s", wantLen, got)
	}
	if got := head.Header().Get("Content-Type"); got != shutdown.ContentType {
		t.Errorf("expected %s, got %s", shutdown.ContentType, got)
	}

	get := f.do(http.MethodGet, "10.0.0.9")
	if get.Body.Len() != int(shutdown.Size()) {
		t.Errorf("expected artifact body %d bytes, got %d", shutdown.Size(), get.Body.Len())
	}

	// Exhaustion is stable and stateless: identical bytes, no transitions.
	again := f.do(http.MethodGet, "10.0.0.9")
	if again.Body.String() != get.Body.String() {
		t.Error("expected identical artifact bytes on every exhausted request")
	}
}

func TestConcurrentClients_DistinctWorkloads(t *testing.T) {
	f := newFixture(t,
		testutil.PatternSource("a.efi", workload.SourceTypeEFI, 10),
		testutil.PatternSource("b.efi", workload.SourceTypeEFI, 20),
	)

	var wg sync.WaitGroup
	lengths := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := f.do(http.MethodHead, fmt.Sprintf("10.0.0.%d", i+1))
			lengths[i] = rr.Header().Get("Content-Length")
		}(i)
	}
	wg.Wait()

	if lengths[0] == lengths[1] {
		t.Errorf("concurrent clients must receive distinct workloads, both got %s", lengths[0])
	}
}

func TestSizeMismatch_Panics(t *testing.T) {
	liar := testutil.PatternSource("a.efi", workload.SourceTypeEFI, 100)
	liar.DeclaredSize = 150 // source completes cleanly but short of the declaration
	f := newFixture(t, liar)

	defer func() {
		if recover() == nil {
			t.Error("expected invariant violation panic on size mismatch")
		}
	}()
	f.do(http.MethodGet, "10.0.0.1")
}
