package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTimeoutConfig_Hierarchy(t *testing.T) {
	for name, config := range map[string]*TimeoutConfig{
		"default": DefaultTimeoutConfig(),
		"test":    TestTimeoutConfig(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Greater(t, config.HTTPHandler, config.Service)
			assert.Greater(t, config.Service, config.ExternalAPI)
			assert.Greater(t, config.ExternalAPI, config.NotificationDelivery)
		})
	}

	config := DefaultTimeoutConfig()
	assert.Equal(t, 60*time.Second, config.HTTPHandler)
	assert.Equal(t, 30*time.Second, config.ExternalAPI)
}

func TestHandlerContext(t *testing.T) {
	config := DefaultTimeoutConfig()

	ctx, cancel := config.HandlerContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(config.HTTPHandler), deadline, 100*time.Millisecond)
}

func TestCronContext(t *testing.T) {
	config := TestTimeoutConfig()

	ctx, cancel := config.CronContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(config.CronJob), deadline, 100*time.Millisecond)
}
