package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestWithTraceIDStampsContextLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := zlog.Logger
	zlog.Logger = zerolog.New(&buf)
	t.Cleanup(func() { zlog.Logger = prev })

	ctx := WithTraceID(context.Background(), "4bf92f3577b34da6a3ce929d0e0e4736")
	Ctx(ctx).Info().Msg("processing message")

	assert.Contains(t, buf.String(), `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
}

func TestCtxFallsBackToGlobalLogger(t *testing.T) {
	l := Ctx(context.Background())
	assert.NotNil(t, l)
	assert.NotEqual(t, zerolog.Disabled, l.GetLevel())
}
