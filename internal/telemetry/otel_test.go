package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/classgrid/internal/config"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.ObservabilityConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_RejectsGRPC(t *testing.T) {
	_, err := Init(context.Background(), config.ObservabilityConfig{
		OTLPEndpoint: "localhost:4317",
		OTLPProtocol: "grpc",
		ServiceName:  "classgrid",
	})
	assert.Error(t, err)
}
