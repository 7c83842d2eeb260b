package graph

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// Technique is a way a graphics pass draws: the pipeline state plus the
// bindings shared by every draw using it.
type Technique struct {
	Name      string
	Channels  uint32
	Pipeline  gpu.PipelineState
	Bindables []gpu.Binding
}

// Drawable is whatever the scene submits to the graph. Draw binds its
// geometry and material and issues the draw call.
type Drawable interface {
	Draw(rec Recorder, technique *Technique) error
}

// DrawableFunc adapts a function to a Drawable.
type DrawableFunc func(rec Recorder, technique *Technique) error

func (f DrawableFunc) Draw(rec Recorder, technique *Technique) error {
	return f(rec, technique)
}

// Job is one queued draw.
type Job struct {
	Technique *Technique
	Drawable  Drawable
	Bounds    math.Extents3D
}

// SubPass batches the jobs of a pass sharing one pipeline state.
type SubPass struct {
	// index of the owning pass in the graph.
	pass     int
	pipeline gpu.PipelineState
	jobs     []Job
}

func (sp *SubPass) Pass() int { return sp.pass }

func (sp *SubPass) Pipeline() gpu.PipelineState { return sp.pipeline }

func (sp *SubPass) Jobs() []Job { return sp.jobs }

// Accept queues job until the next Reset of the graph.
func (sp *SubPass) Accept(job Job) {
	sp.jobs = append(sp.jobs, job)
}

/**
 * @brief Binds the pipeline state and the bindings of the owning pass once,
 * then runs every job. The recorder only records the bindings that change
 * between jobs.
 */
func (sp *SubPass) Execute(rec Recorder, passBindings []gpu.Binding) error {
	if len(sp.jobs) == 0 {
		return nil
	}
	rec.SetPipelineState(sp.pipeline)
	if len(passBindings) > 0 {
		rec.SetBindings(passBindings)
	}
	for _, job := range sp.jobs {
		if len(job.Technique.Bindables) > 0 {
			rec.SetBindings(job.Technique.Bindables)
		}
		if err := job.Drawable.Draw(rec, job.Technique); err != nil {
			return fmt.Errorf("technique `%s`: %w", job.Technique.Name, err)
		}
	}
	return nil
}
