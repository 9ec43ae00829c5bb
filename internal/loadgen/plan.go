package loadgen

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

// Pattern shapes how a generated plan spreads its operations over time.
type Pattern string

const (
	PatternSteady Pattern = "steady" // evenly spaced
	PatternBurst  Pattern = "burst"  // tight bursts with quiet gaps
	PatternRamp   Pattern = "ramp"   // rate grows towards the end
)

const burstCount = 4

// Op is one planned bench call. At is its offset from the start of the run.
type Op struct {
	At      time.Duration `json:"at"`
	Kind    recorder.Op   `json:"op"`
	ID      int64         `json:"id"`
	Delta   int64         `json:"delta,omitempty"`
	SleepMs int           `json:"sleepMs"`
}

// Plan is an ordered list of operations.
type Plan struct {
	Ops []Op `json:"ops"`
}

// Span is the offset of the last operation.
func (p Plan) Span() time.Duration {
	var span time.Duration
	for _, op := range p.Ops {
		if op.At > span {
			span = op.At
		}
	}
	return span
}

// PlanSpec describes a synthetic workload.
type PlanSpec struct {
	Count    int           `yaml:"count"`
	IDs      int           `yaml:"ids"`     // rows FirstID..FirstID+IDs-1 are targeted
	FirstID  int64         `yaml:"firstId"` // 0 means 1
	TxRatio  float64       `yaml:"txRatio"` // share of tx ops in [0,1]
	Delta    int64         `yaml:"delta"`
	SleepMs  int           `yaml:"sleepMs"`
	Duration time.Duration `yaml:"duration"` // 0 schedules everything at once
	Pattern  Pattern       `yaml:"pattern"`
	Seed     int64         `yaml:"seed"` // 0 picks a time-based seed
}

// Validate checks the plan parameters.
func (s PlanSpec) Validate() error {
	if s.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", s.Count)
	}
	if s.IDs <= 0 {
		return fmt.Errorf("ids must be positive, got %d", s.IDs)
	}
	if s.TxRatio < 0 || s.TxRatio > 1 {
		return fmt.Errorf("txRatio must be within [0,1], got %g", s.TxRatio)
	}
	if s.SleepMs < 0 {
		return fmt.Errorf("sleepMs must be >= 0, got %d", s.SleepMs)
	}
	if s.Duration < 0 {
		return fmt.Errorf("duration must be >= 0, got %s", s.Duration)
	}
	switch s.Pattern {
	case PatternSteady, PatternBurst, PatternRamp, "":
	default:
		return fmt.Errorf("unknown pattern %q, must be one of: steady, burst, ramp", s.Pattern)
	}
	return nil
}

// Generate builds a synthetic plan from spec. The same non-zero Seed always
// yields the same plan.
func Generate(spec PlanSpec) (Plan, error) {
	if err := spec.Validate(); err != nil {
		return Plan{}, err
	}
	if spec.FirstID == 0 {
		spec.FirstID = 1
	}
	seed := spec.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var offsets []time.Duration
	switch spec.Pattern {
	case PatternBurst:
		offsets = burstOffsets(rng, spec.Count, spec.Duration)
	case PatternRamp:
		offsets = rampOffsets(spec.Count, spec.Duration)
	default:
		offsets = steadyOffsets(spec.Count, spec.Duration)
	}

	ops := make([]Op, spec.Count)
	for i := range ops {
		op := Op{
			At:      offsets[i],
			Kind:    recorder.OpRead,
			ID:      spec.FirstID + rng.Int63n(int64(spec.IDs)),
			SleepMs: spec.SleepMs,
		}
		if rng.Float64() < spec.TxRatio {
			op.Kind = recorder.OpTx
			op.Delta = spec.Delta
		}
		ops[i] = op
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].At < ops[j].At })
	return Plan{Ops: ops}, nil
}

func steadyOffsets(count int, dur time.Duration) []time.Duration {
	interval := dur / time.Duration(count)
	out := make([]time.Duration, count)
	for i := range out {
		out[i] = time.Duration(i) * interval
	}
	return out
}

func burstOffsets(rng *rand.Rand, count int, dur time.Duration) []time.Duration {
	out := make([]time.Duration, 0, count)
	gap := dur / burstCount
	width := time.Second
	if gap < width {
		width = gap
	}
	size := count / burstCount

	for b := 0; b < burstCount; b++ {
		start := time.Duration(b) * gap
		for i := 0; i < size; i++ {
			var jitter time.Duration
			if width > 0 {
				jitter = time.Duration(rng.Int63n(int64(width)))
			}
			out = append(out, start+jitter)
		}
	}
	for len(out) < count {
		var at time.Duration
		if dur > 0 {
			at = time.Duration(rng.Int63n(int64(dur)))
		}
		out = append(out, at)
	}
	return out
}

// rampOffsets places op i at sqrt(i/count) of the span, so the gaps shrink
// and the rate climbs as the run goes on.
func rampOffsets(count int, dur time.Duration) []time.Duration {
	out := make([]time.Duration, count)
	for i := range out {
		frac := float64(i) / float64(count)
		out[i] = time.Duration(math.Sqrt(frac) * float64(dur))
	}
	return out
}

// PlanFromRecords turns traffic captured by a recording server back into a
// plan with the original spacing. Only bench operations are kept.
func PlanFromRecords(records []recorder.OpRecord) Plan {
	sorted := make([]recorder.OpRecord, 0, len(records))
	for _, rec := range records {
		if rec.Op == recorder.OpRead || rec.Op == recorder.OpTx {
			sorted = append(sorted, rec)
		}
	}
	if len(sorted) == 0 {
		return Plan{}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	base := sorted[0].Timestamp
	ops := make([]Op, len(sorted))
	for i, rec := range sorted {
		ops[i] = Op{
			At:      rec.Timestamp.Sub(base),
			Kind:    rec.Op,
			ID:      rec.ID,
			Delta:   rec.Delta,
			SleepMs: rec.SleepMs,
		}
	}
	return Plan{Ops: ops}
}

// Save writes the plan as indented JSON.
func (p Plan) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding plan")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// LoadPlan reads a plan written by Save.
func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, errors.Wrapf(err, "reading %s", path)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return Plan{}, errors.Wrapf(err, "decoding %s", path)
	}
	for i, op := range p.Ops {
		if op.Kind != recorder.OpRead && op.Kind != recorder.OpTx {
			return Plan{}, fmt.Errorf("op %d: unknown op %q", i, op.Kind)
		}
	}
	return p, nil
}
