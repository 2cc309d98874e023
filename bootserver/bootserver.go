// Package bootserver serves boot payloads to network-boot clients over
// HTTP. A client probes with HEAD to learn the size and content-type of the
// workload the queue picked for it, then GETs the same path to stream the
// bytes. Once the queue is exhausted every request receives the embedded
// poweroff artifact instead.
package bootserver

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/dispatch/errors"
	"github.com/skillsenselab/dispatch/logger"
	"github.com/skillsenselab/dispatch/shutdown"
	"github.com/skillsenselab/dispatch/workload"
)

// copyChunkSize is the streaming buffer size. Cancellation is checked
// between chunks so a dead client is noticed without a write.
const copyChunkSize = 32 * 1024

// Routes handles the boot-client HTTP surface.
type Routes struct {
	queue    *workload.Queue
	registry *workload.Registry
	log      *logger.Logger
}

// Register mounts the boot routes on the engine root. Boot firmware is not
// expected to know workload names, so a single fixed path serves whichever
// workload the queue selects for the caller.
func Register(engine *gin.Engine, queue *workload.Queue, registry *workload.Registry, log *logger.Logger) *Routes {
	r := &Routes{
		queue:    queue,
		registry: registry,
		log:      log.WithComponent("bootserver"),
	}
	engine.HEAD("/", r.Head)
	engine.GET("/", r.Get)
	return r
}

// Head answers a size probe: it consults the queue (assigning a workload to
// new clients as a side effect) and reports the declared size and served
// content-type without streaming a byte. Repeated probes are sticky.
func (r *Routes) Head(c *gin.Context) {
	client := c.ClientIP()

	a, ok := r.queue.Next(client)
	if !ok {
		c.Header("Content-Type", shutdown.ContentType)
		c.Header("Content-Length", strconv.FormatInt(shutdown.Size(), 10))
		c.Status(http.StatusOK)
		return
	}

	r.log.Debug("size probe", map[string]interface{}{
		logger.FieldClient:   client,
		logger.FieldWorkload: a.Workload.Name,
	})

	c.Header("Content-Type", a.Workload.ContentType)
	c.Header("Content-Length", strconv.FormatInt(a.Workload.Size, 10))
	c.Status(http.StatusOK)
}

// Get streams the selected workload. A GET without a prior HEAD is legal
// and runs the same queue path. On clean completion the workload moves to
// Booting; a mid-stream disconnect fails it with TransferAborted.
func (r *Routes) Get(c *gin.Context) {
	client := c.ClientIP()

	a, ok := r.queue.Next(client)
	if !ok {
		c.Data(http.StatusOK, shutdown.ContentType, shutdown.Artifact())
		return
	}

	// Enter Downloading if the record is still freshly Assigned. A rerun
	// that already advanced past Assigned streams again without a
	// transition; regression is never allowed.
	if err := r.registry.MarkDownloading(a.Index, client); err != nil {
		if state := r.registry.Observe(a.Index).State; state == workload.StateUnassigned || state.Terminal() {
			c.JSON(http.StatusConflict, apperrors.InvalidTransition(a.Workload.Name, string(state), string(workload.StateDownloading)).ToResponse())
			return
		}
	}

	src, err := a.Workload.Open(c.Request.Context())
	if err != nil {
		r.log.Error("workload source open failed", logger.MergeWithError(map[string]interface{}{
			logger.FieldWorkload: a.Workload.Name,
		}, err))
		_ = r.registry.MarkFailed(a.Index, workload.ReasonSourceUnavailable)
		c.JSON(http.StatusBadGateway, apperrors.UpstreamUnavailable(err).ToResponse())
		return
	}
	defer src.Close()

	c.Header("Content-Type", a.Workload.ContentType)
	c.Header("Content-Length", strconv.FormatInt(a.Workload.Size, 10))
	c.Status(http.StatusOK)

	written, err := r.stream(c, src)
	if err != nil {
		r.log.Warn("transfer aborted", map[string]interface{}{
			logger.FieldClient:   client,
			logger.FieldWorkload: a.Workload.Name,
			"written":            written,
			logger.FieldError:    err.Error(),
		})
		_ = r.registry.MarkFailed(a.Index, workload.ReasonTransferAborted)
		return
	}

	// HEAD promised exactly Size bytes; streaming a different count on a
	// clean read is a broken invariant, not a client error.
	if written != a.Workload.Size {
		panic(apperrors.InternalInvariantViolation(
			"streamed " + strconv.FormatInt(written, 10) + " bytes for " +
				a.Workload.Name + ", declared " + strconv.FormatInt(a.Workload.Size, 10)))
	}

	// Download complete; the beacon boot notification may already have won
	// the race into Booting, in which case this is a no-op.
	if _, err := r.registry.MarkBooting(a.Index, client); err != nil {
		r.log.Error("post-download transition rejected", logger.ErrorFields("mark-booting", err))
		return
	}

	r.log.Info("workload served", map[string]interface{}{
		logger.FieldClient:   client,
		logger.FieldWorkload: a.Workload.Name,
		"bytes":              written,
	})
}

// stream copies src to the response in chunks, observing request
// cancellation between chunks. No registry guard is held here: the final
// transition reacquires it after the copy.
func (r *Routes) stream(c *gin.Context, src io.Reader) (int64, error) {
	ctx := c.Request.Context()
	w := c.Writer
	buf := make([]byte, copyChunkSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			w.Flush()
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
