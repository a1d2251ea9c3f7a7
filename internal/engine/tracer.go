package engine

// Tracer observes passes. Implementations must not call back into the
// kernel; they run on the pass goroutine with the kernel lock held.
type Tracer interface {
	PassStarted(p *Pass)
	NodeExecuted(p *Pass, ex Execution)
	ErrorReported(p *Pass, err *RuntimeError)
	PassFinished(p *Pass)
}

type nopTracer struct{}

func (nopTracer) PassStarted(*Pass)                  {}
func (nopTracer) NodeExecuted(*Pass, Execution)      {}
func (nopTracer) ErrorReported(*Pass, *RuntimeError) {}
func (nopTracer) PassFinished(*Pass)                 {}

// Tracers fans every callback out to each of ts, in order.
func Tracers(ts ...Tracer) Tracer {
	var out multiTracer
	for _, t := range ts {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

type multiTracer []Tracer

func (m multiTracer) PassStarted(p *Pass) {
	for _, t := range m {
		t.PassStarted(p)
	}
}

func (m multiTracer) NodeExecuted(p *Pass, ex Execution) {
	for _, t := range m {
		t.NodeExecuted(p, ex)
	}
}

func (m multiTracer) ErrorReported(p *Pass, err *RuntimeError) {
	for _, t := range m {
		t.ErrorReported(p, err)
	}
}

func (m multiTracer) PassFinished(p *Pass) {
	for _, t := range m {
		t.PassFinished(p)
	}
}
