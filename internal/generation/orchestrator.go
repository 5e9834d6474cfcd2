// Package generation sequences a text-to-image request through its fixed
// progress phases.
package generation

import (
	"context"
	"errors"
	"time"

	"github.com/sj-versent/demo-aws-summit-2025/internal/broker"
)

var ErrNoImage = errors.New("No image returned from model.")

// ModelInvocationError is returned when the image model call fails or
// returns no image.
type ModelInvocationError struct {
	Err error
}

func (e *ModelInvocationError) Error() string { return e.Err.Error() }
func (e *ModelInvocationError) Unwrap() error { return e.Err }

type CredentialSource interface {
	ScopedCredential(ctx context.Context, path string) (broker.ScopedCredential, error)
}

// ImageModel invokes the hosted model and returns its base64 images.
type ImageModel interface {
	Invoke(ctx context.Context, cred broker.ScopedCredential, payload Payload) ([]string, error)
}

type Options struct {
	CredsPath string
	// ReceivedPause is slept after the first status so clients can render it.
	ReceivedPause time.Duration
	Seed          func() int64
}

type Orchestrator struct {
	creds CredentialSource
	model ImageModel
	opts  Options
}

func NewOrchestrator(creds CredentialSource, model ImageModel, opts Options) *Orchestrator {
	if opts.Seed == nil {
		opts.Seed = RandomSeed
	}
	return &Orchestrator{creds: creds, model: model, opts: opts}
}

// Generate emits Received, FetchingCredentials, AwaitingImage and exactly one
// terminal status, then returns that terminal status.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, emit Sink) Status {
	emit(Received())
	if o.opts.ReceivedPause > 0 {
		t := time.NewTimer(o.opts.ReceivedPause)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	emit(FetchingCredentials())
	cred, err := o.creds.ScopedCredential(ctx, o.opts.CredsPath)
	if err != nil {
		return finish(emit, Failed(err.Error()))
	}

	emit(AwaitingImage())
	image, err := o.Image(ctx, cred, prompt)
	if err != nil {
		return finish(emit, Failed(err.Error()))
	}
	return finish(emit, Ready(image))
}

// Image performs one model call and returns the first image.
func (o *Orchestrator) Image(ctx context.Context, cred broker.ScopedCredential, prompt string) (string, error) {
	images, err := o.model.Invoke(ctx, cred, NewPayload(prompt, o.opts.Seed()))
	if err != nil {
		return "", &ModelInvocationError{Err: err}
	}
	if len(images) == 0 || images[0] == "" {
		return "", &ModelInvocationError{Err: ErrNoImage}
	}
	return images[0], nil
}

// GenerateOnce is the single-shot form: no progress, just the image or the
// error.
func (o *Orchestrator) GenerateOnce(ctx context.Context, prompt string) (string, error) {
	cred, err := o.creds.ScopedCredential(ctx, o.opts.CredsPath)
	if err != nil {
		return "", err
	}
	return o.Image(ctx, cred, prompt)
}

func finish(emit Sink, s Status) Status {
	emit(s)
	return s
}
