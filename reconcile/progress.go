package reconcile

type Stage string

const (
	StageFetchPages Stage = "fetch_pages"
	StageFetchPosts Stage = "fetch_posts"
	StageRescue     Stage = "rescue"
	StagePrune      Stage = "prune"
	StageFlatten    Stage = "flatten"
	StageDone       Stage = "done"
)

// Progress is reported when a reconciliation run enters a stage.
type Progress struct {
	Stage Stage `json:"stage"`
	Items int   `json:"items"`
	Round int   `json:"round,omitempty"`
}

type ProgressFunc func(Progress)

type RunOption func(*run)

// WithProgress registers a callback for stage transitions.
func WithProgress(fn ProgressFunc) RunOption {
	return func(r *run) {
		r.progress = fn
	}
}

type run struct {
	progress ProgressFunc
}

func newRun(opts []RunOption) *run {
	r := &run{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *run) report(p Progress) {
	if r.progress != nil {
		r.progress(p)
	}
}
