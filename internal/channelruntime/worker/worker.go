// Package worker runs submitted jobs on a fixed number of goroutines. With a
// size of one it serializes every job, which the runtime uses as its single
// writer for the vault and the settings blob.
package worker

import (
	"context"
	"errors"
)

var ErrStopped = errors.New("worker: pool stopped")

type Job func(ctx context.Context) error

type request struct {
	ctx  context.Context
	run  Job
	done chan error
}

type Pool struct {
	ctx  context.Context
	jobs chan request
}

// Start launches size workers that live until ctx is done.
func Start(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{ctx: ctx, jobs: make(chan request)}
	for i := 0; i < size; i++ {
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case req := <-p.jobs:
			req.done <- runJob(req)
		}
	}
}

func runJob(req request) error {
	if err := req.ctx.Err(); err != nil {
		return err
	}
	return req.run(req.ctx)
}

// Do waits for a free worker, runs job on it and returns its error. If ctx
// ends after the job started, Do returns early and the job runs to completion.
func (p *Pool) Do(ctx context.Context, job Job) error {
	if job == nil {
		return nil
	}
	if ctx == nil {
		ctx = p.ctx
	}
	if p.ctx.Err() != nil {
		return ErrStopped
	}
	req := request{ctx: ctx, run: job, done: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrStopped
	case p.jobs <- req:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.done:
		return err
	}
}
