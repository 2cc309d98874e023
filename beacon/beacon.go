// Package beacon receives out-of-band progress notifications from running
// workloads. A workload phones home twice: once when it has booted, and
// once with its result. Callers are identified by network address alone —
// the beacon locates whatever workload is assigned to the caller.
package beacon

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/dispatch/errors"
	"github.com/skillsenselab/dispatch/logger"
	"github.com/skillsenselab/dispatch/server"
	"github.com/skillsenselab/dispatch/server/middleware"
	"github.com/skillsenselab/dispatch/sink"
	"github.com/skillsenselab/dispatch/workload"
)

// Routes handles the beacon notification surface.
type Routes struct {
	registry   *workload.Registry
	dispatcher *sink.Dispatcher
	log        *logger.Logger
}

// Register mounts the beacon routes under /beacon on the shared engine.
// The group carries its own rate limit: beacons are tiny control messages,
// and a runaway workload must not be able to flood the server.
func Register(engine *gin.Engine, registry *workload.Registry, dispatcher *sink.Dispatcher, log *logger.Logger) *Routes {
	r := &Routes{
		registry:   registry,
		dispatcher: dispatcher,
		log:        log.WithComponent("beacon"),
	}

	grp := engine.Group("/beacon")
	grp.Use(middleware.RateLimit(middleware.RateLimitConfig{RequestsPerMinute: 120}))
	grp.POST("/boot", r.Boot)
	grp.POST("/report", r.Report)
	return r
}

type bootAck struct {
	Workload string `json:"workload"`
	State    string `json:"state"`
}

// Boot handles the boot-started notification. It is idempotent: the edge
// into Booting races with download-completion recognition, and firmware may
// resend. Assigned and Downloading are both legal prior states.
func (r *Routes) Boot(c *gin.Context) {
	client := c.ClientIP()

	idx, rec, ok := r.registry.FindAssigned(client)
	if !ok {
		server.RespondWithError(c, apperrors.BeaconMisaddressed(client))
		return
	}

	prior, err := r.registry.MarkBooting(idx, client)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	r.log.Info("boot beacon", map[string]interface{}{
		logger.FieldClient:   client,
		logger.FieldWorkload: rec.Workload.Name,
		"prior":              string(prior),
	})
	server.RespondOK(c, bootAck{Workload: rec.Workload.Name, State: string(workload.StateBooting)})
}

type reportRequest struct {
	// Summary is the opaque result payload; the core forwards it to the
	// sink verbatim.
	Summary string `json:"summary" binding:"required"`
}

// Report handles the result notification. The workload must be Booting;
// duplicate reports are rejected. The sink is invoked in the background —
// the response returns as soon as Reported is recorded.
func (r *Routes) Report(c *gin.Context) {
	client := c.ClientIP()

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.Validation("report requires a summary").WithCause(err))
		return
	}

	idx, rec, ok := r.registry.FindAssigned(client)
	if !ok {
		server.RespondWithError(c, apperrors.BeaconMisaddressed(client))
		return
	}

	if err := r.registry.MarkReported(idx, client, req.Summary); err != nil {
		server.RespondWithError(c, err)
		return
	}

	r.log.Info("result beacon", map[string]interface{}{
		logger.FieldClient:   client,
		logger.FieldWorkload: rec.Workload.Name,
	})

	r.dispatcher.Submit(idx, r.registry.Observe(idx))
	server.RespondAccepted(c, bootAck{Workload: rec.Workload.Name, State: string(workload.StateReported)})
}
