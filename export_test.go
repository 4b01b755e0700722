package trafficlight

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var NewHookRunner = newHookRunner

const HookBufferSize = hookBufferSize

var NewJSONLogger = newJSONLogger

type S3GetObjectFunc func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)

func (f S3GetObjectFunc) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return f(ctx, params, optFns...)
}

// SetS3Client replaces the s3 client used by LoadConfig and returns a func
// restoring the previous one.
func SetS3Client(f S3GetObjectFunc) func() {
	prev := newS3Client
	newS3Client = func(context.Context) (s3ObjectGetter, error) {
		return f, nil
	}
	return func() { newS3Client = prev }
}

func (c *Cycle) DrawThreshold() time.Duration {
	return c.drawThreshold()
}

func (c *Cycle) Publish(p Phase) {
	c.publish(p)
}

func (c *Cycle) Queue() *Queue[Phase] {
	return c.queue
}

func (c *Cycle) NumWatchers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers)
}

func (r *Responder) Handler() http.Handler {
	return r.handler()
}

func (r *Responder) Listen(ctx context.Context) {
	r.phaseListener(ctx)
}
