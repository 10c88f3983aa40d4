package renderer

import (
	"context"

	"alfie/internal/domain"
)

// Renderer turns a job payload into a finished asset. Implementations must
// be safe to invoke more than once for the same job: the queue delivers
// at-least-once.
type Renderer interface {
	Render(ctx context.Context, job domain.Job) (domain.RenderResult, error)
}

// Registry maps job types to the renderer that serves them.
type Registry map[domain.JobType]Renderer

// For returns the renderer for a job type.
func (r Registry) For(t domain.JobType) (Renderer, bool) {
	render, ok := r[t]
	return render, ok
}
