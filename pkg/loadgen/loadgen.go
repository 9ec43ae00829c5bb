// Package loadgen lets Go programs and tests drive a stall server, or a
// bench engine in the same process, and check for lost increments.
package loadgen

import (
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	internalloadgen "github.com/SmitUplenchwar2687/Stall/internal/loadgen"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

// Pattern shapes the arrival times of a generated plan.
type Pattern = internalloadgen.Pattern

const (
	PatternSteady = internalloadgen.PatternSteady
	PatternBurst  = internalloadgen.PatternBurst
	PatternRamp   = internalloadgen.PatternRamp
)

const (
	OutputStylePlain = internalloadgen.OutputStylePlain
	OutputStyleTable = internalloadgen.OutputStyleTable
	OutputStyleJSON  = internalloadgen.OutputStyleJSON
)

type (
	Op           = internalloadgen.Op
	Plan         = internalloadgen.Plan
	PlanSpec     = internalloadgen.PlanSpec
	Target       = internalloadgen.Target
	Engine       = internalloadgen.Engine
	Client       = internalloadgen.Client
	APIError     = internalloadgen.APIError
	Runner       = internalloadgen.Runner
	RunnerConfig = internalloadgen.RunnerConfig
	Report       = internalloadgen.Report
	Check        = internalloadgen.Check
)

// Operation kinds carried by plans.
const (
	OpRead = recorder.OpRead
	OpTx   = recorder.OpTx
)

// Generate builds a plan from spec.
func Generate(spec PlanSpec) (Plan, error) { return internalloadgen.Generate(spec) }

// LoadPlan reads a plan file.
func LoadPlan(path string) (Plan, error) { return internalloadgen.LoadPlan(path) }

// NewClient returns a Target that calls the server at baseURL.
func NewClient(baseURL string, hc *http.Client) *Client {
	return internalloadgen.NewClient(baseURL, hc)
}

// Direct adapts an in-process engine to Target.
func Direct(e Engine) Target { return internalloadgen.Direct(e) }

// NewRunner returns a Runner on the wall clock.
func NewRunner(target Target, cfg RunnerConfig, logger *log.Logger) *Runner {
	return internalloadgen.NewRunner(target, cfg, clock.NewReal(), logger)
}

// ErrorKind names the failure class of err.
func ErrorKind(err error) string { return internalloadgen.ErrorKind(err) }
