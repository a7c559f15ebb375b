// Package run orchestrates a play across an inventory: hosts execute
// independently in a bounded worker pool, tasks within a host execute
// strictly in order, and notified handlers drain once per host after its
// task sequence completes.
package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/droverhq/drover/pkg/inventory"
	"github.com/droverhq/drover/pkg/modules"
	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/telemetry"
	"github.com/droverhq/drover/pkg/transport"
)

const (
	defaultForks       = 5
	defaultTaskTimeout = 5 * time.Minute
)

// Options tunes a run.
type Options struct {
	// Forks bounds how many hosts execute concurrently (default 5).
	Forks int

	// TaskTimeout bounds each task's execution, connection included
	// (default 5m). On expiry the task fails for that host only.
	TaskTimeout time.Duration

	// DryRun evaluates Diff on every host but never applies.
	DryRun bool

	// Logger receives structured progress logs. Nil discards.
	Logger *telemetry.Logger

	// Metrics receives run/task counters. Nil is a no-op.
	Metrics *telemetry.Metrics

	// Dialer opens host channels. Nil uses DefaultDialer.
	Dialer Dialer
}

// Runner applies one play to the hosts of its target group.
type Runner struct {
	inv   *inventory.Inventory
	play  *playbook.Play
	hosts []inventory.Host
	opts  Options

	log    *telemetry.Logger
	tracer trace.Tracer
}

// New resolves the play's target group against the inventory. An unknown
// group is a parse-class error: nothing has run yet.
func New(inv *inventory.Inventory, play *playbook.Play, opts Options) (*Runner, error) {
	hosts, ok := inv.Group(play.Targets)
	if !ok {
		return nil, NewParseError(fmt.Errorf("play %q targets unknown group %q", play.Name, play.Targets))
	}

	if opts.Forks <= 0 {
		opts.Forks = defaultForks
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = DefaultDialer
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NopLogger()
	}

	return &Runner{
		inv:    inv,
		play:   play,
		hosts:  hosts,
		opts:   opts,
		log:    log.NewComponentLogger("run"),
		tracer: otel.Tracer("github.com/droverhq/drover/pkg/run"),
	}, nil
}

// Run executes the play and returns the aggregated report. Per-host
// failures are collected in the report, never returned as an error.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		ID:        uuid.New().String(),
		Play:      r.play.Name,
		DryRun:    r.opts.DryRun,
		StartedAt: time.Now(),
		Hosts:     make([]HostReport, len(r.hosts)),
	}

	ctx, span := r.tracer.Start(ctx, "play.run", trace.WithAttributes(
		attribute.String("play", r.play.Name),
		attribute.String("run_id", report.ID),
		attribute.Int("hosts", len(r.hosts)),
	))
	defer span.End()

	r.log.WithRunID(report.ID).Infof("running play %q on %d host(s), forks=%d",
		r.play.Name, len(r.hosts), r.opts.Forks)
	r.opts.Metrics.RunStarted()

	sem := make(chan struct{}, r.opts.Forks)
	var wg sync.WaitGroup
	for i, host := range r.hosts {
		wg.Add(1)
		go func(i int, host inventory.Host) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			report.Hosts[i] = r.runHost(ctx, host)
		}(i, host)
	}
	wg.Wait()

	report.Duration = time.Since(report.StartedAt)

	status := "completed"
	if report.Failed() {
		status = "failed"
	}
	r.opts.Metrics.RunCompleted(status, report.Duration)
	r.log.WithRunID(report.ID).Infof("play %q %s in %s", r.play.Name, status, report.Duration.Round(time.Millisecond))

	return report
}

// runHost drives one host through pending -> running -> completed|failed.
func (r *Runner) runHost(ctx context.Context, host inventory.Host) HostReport {
	log := r.log.WithHost(host.Name)
	report := HostReport{Host: host.Name, State: HostRunning}

	ctx, span := r.tracer.Start(ctx, "host.run", trace.WithAttributes(
		attribute.String("host", host.Name),
	))
	defer span.End()

	dialCtx, cancel := context.WithTimeout(ctx, r.opts.TaskTimeout)
	ch, err := r.opts.Dialer(dialCtx, host)
	cancel()
	if err != nil {
		log.WithError(err).Error("connection failed")
		report.State = HostFailed
		report.Err = err
		report.Error = err.Error()
		report.Kind = Classify(err)
		r.opts.Metrics.HostCompleted(string(HostFailed))
		return report
	}
	defer ch.Close()

	if r.play.Become {
		ch = transport.WithBecome(ch)
	}

	var pending []playbook.Handler
	notified := make(map[string]bool)
	hostFailed := false

	for _, task := range r.play.Tasks {
		if hostFailed {
			report.Results = append(report.Results, TaskResult{
				Task:   task.Name,
				Module: task.Module,
				Status: StatusSkipped,
			})
			continue
		}

		result := r.applyTask(ctx, ch, host, task, false)
		report.Results = append(report.Results, result)

		switch result.Status {
		case StatusFailed:
			hostFailed = true
		case StatusChanged:
			if task.Notify != "" && !notified[task.Notify] {
				notified[task.Notify] = true
				handler, _ := r.play.Handler(task.Notify)
				pending = append(pending, handler)
			}
		}
	}

	// Handlers drain once per host, in first-trigger order, only when the
	// whole task sequence succeeded.
	if !hostFailed {
		for _, handler := range pending {
			if hostFailed {
				report.Results = append(report.Results, TaskResult{
					Task:    handler.Task.Name,
					Module:  handler.Task.Module,
					Status:  StatusSkipped,
					Handler: true,
				})
				continue
			}
			result := r.applyTask(ctx, ch, host, handler.Task, true)
			report.Results = append(report.Results, result)
			if result.Status == StatusFailed {
				hostFailed = true
			} else {
				r.opts.Metrics.HandlerFired()
			}
		}
	}

	if hostFailed {
		report.State = HostFailed
	} else {
		report.State = HostCompleted
	}
	r.opts.Metrics.HostCompleted(string(report.State))
	log.Infof("host %s: %d changed, state=%s", host.Name, report.Changed(), report.State)
	return report
}

// applyTask builds, diffs and (unless dry-run or converged) applies one task.
func (r *Runner) applyTask(ctx context.Context, ch transport.Channel, host inventory.Host, task playbook.Task, handler bool) TaskResult {
	start := time.Now()
	log := r.log.WithHost(host.Name).WithField("task", task.Name)

	result := TaskResult{Task: task.Name, Module: task.Module, Handler: handler}
	fail := func(err error) TaskResult {
		result.Status = StatusFailed
		result.Err = err
		result.Error = err.Error()
		result.Kind = Classify(err)
		result.Duration = time.Since(start)
		log.WithError(err).Errorf("task failed (%s)", result.Kind)
		r.opts.Metrics.TaskExecuted(string(task.Module), string(StatusFailed), result.Duration)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.TaskTimeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "task.apply", trace.WithAttributes(
		attribute.String("task", task.Name),
		attribute.String("module", string(task.Module)),
		attribute.Bool("handler", handler),
	))
	defer span.End()

	mod, err := modules.Build(task, host.Name)
	if err != nil {
		return fail(err)
	}

	action, err := mod.Diff(ctx, ch)
	if err != nil {
		return fail(err)
	}

	if !action.Changed {
		result.Status = StatusOK
		result.Reason = action.Reason
		result.Duration = time.Since(start)
		log.Debugf("ok: %s", action.Reason)
		r.opts.Metrics.TaskExecuted(string(task.Module), string(StatusOK), result.Duration)
		return result
	}

	if !r.opts.DryRun {
		if err := mod.Apply(ctx, ch, action); err != nil {
			return fail(err)
		}
	}

	result.Status = StatusChanged
	result.Reason = action.Reason
	result.Duration = time.Since(start)
	log.Infof("changed: %s", action.Reason)
	r.opts.Metrics.TaskExecuted(string(task.Module), string(StatusChanged), result.Duration)
	return result
}
