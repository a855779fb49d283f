package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralrestaurante/amigo-central/config"
	"github.com/centralrestaurante/amigo-central/domain"
)

func TestEventBrokerDisabledWithoutWebsocket(t *testing.T) {
	broker, closeBroker := newEventBroker(&config.Config{})

	assert.True(t, broker == nil)
	assert.NoError(t, closeBroker())
}

func TestEventBrokerWithWebsocket(t *testing.T) {
	broker, closeBroker := newEventBroker(&config.Config{JWTSecret: "secret"})
	require.NotNil(t, broker)

	ch, err := broker.Subscribe(context.Background(), domain.EventsTopic, domain.EventsRoutingKey)
	require.NoError(t, err)
	require.NoError(t, broker.Publish(context.Background(), domain.EventsTopic, domain.EventsRoutingKey, []byte(`{}`)))
	assert.Equal(t, []byte(`{}`), (<-ch).Payload)

	require.NoError(t, closeBroker())
}
