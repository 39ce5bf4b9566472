// Package quota implements the per-client note rate limiter: a token
// bucket whose effective cost stiffens under sustained load.
package quota

const (
	defaultMax       = 24000
	defaultAllowance = 8000
	defaultHistLen   = 3
)

// NoteQuota tracks a client's note budget. Each tick records the current
// balance into a sliding history and refills one allowance. When the
// history sum reaches zero the client has been saturating the bucket for
// the whole window, and Spend charges a full allowance per note instead of
// one point, which throttles sustained spam while staying generous to
// bursts.
type NoteQuota struct {
	Points     int32
	Allowance  int32
	Max        int32
	MaxHistLen int
	History    []int32
}

// New returns a quota at full balance with a saturated history.
func New() *NoteQuota {
	q := &NoteQuota{
		Points:     defaultMax,
		Allowance:  defaultAllowance,
		Max:        defaultMax,
		MaxHistLen: defaultHistLen,
	}
	q.History = make([]int32, q.MaxHistLen)
	for i := range q.History {
		q.History[i] = q.Max
	}
	return q
}

// Tick records the current balance at the head of the history and refills
// one allowance, capped at Max. Called once per second for every client.
func (q *NoteQuota) Tick() {
	q.History = append([]int32{q.Points}, q.History...)
	q.History = q.History[:q.MaxHistLen]

	if q.Points < q.Max {
		q.Points += q.Allowance
		if q.Points > q.Max {
			q.Points = q.Max
		}
	}
}

// Spend deducts the cost of playing needed notes and reports whether the
// balance covered it. The balance is left untouched on rejection.
func (q *NoteQuota) Spend(needed int32) bool {
	var sum int32
	for _, p := range q.History {
		sum += p
	}
	if sum <= 0 {
		needed *= q.Allowance
	}
	if q.Points < needed {
		return false
	}
	q.Points -= needed
	return true
}

// Params is the "nq" event describing the quota parameters to the client.
type Params struct {
	M          string `json:"m"`
	Allowance  int32  `json:"allowance"`
	Max        int32  `json:"max"`
	MaxHistLen int    `json:"maxHistLen"`
}

// Params returns the wire representation of the quota parameters.
func (q *NoteQuota) Params() Params {
	return Params{
		M:          "nq",
		Allowance:  q.Allowance,
		Max:        q.Max,
		MaxHistLen: q.MaxHistLen,
	}
}
