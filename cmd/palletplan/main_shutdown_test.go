package main

import (
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestShutdownSignals(t *testing.T) {
	for _, sig := range []os.Signal{syscall.SIGTERM, os.Interrupt} {
		t.Run(sig.String(), func(t *testing.T) {
			t.Cleanup(func() {
				signalNotify = osSignal.Notify
			})

			var registered []os.Signal
			signalNotify = func(ch chan<- os.Signal, sigs ...os.Signal) {
				registered = sigs
				go func() {
					ch <- sig
				}()
			}

			server := &http.Server{}
			called := make(chan struct{}, 1)
			server.RegisterOnShutdown(func() {
				called <- struct{}{}
			})

			core, logs := observer.New(zapcore.InfoLevel)
			shutdown(server, time.Millisecond, zap.New(core))

			select {
			case <-called:
			case <-time.After(time.Second):
				t.Fatalf("expected server shutdown callback to execute")
			}

			assert.Contains(t, registered, os.Signal(syscall.SIGTERM))
			require.Equal(t, 1, logs.FilterMessage("shutting down server").Len())
			assert.Zero(t, logs.FilterMessage("graceful shutdown failed").Len())
		})
	}
}
