// --- File: pkg/push/platform_test.go ---
package push_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

func TestParsePlatform(t *testing.T) {
	for _, valid := range []string{"fcm", "apns", "webpush"} {
		p, err := push.ParsePlatform(valid)
		require.NoError(t, err)
		assert.Equal(t, push.Platform(valid), p)
	}

	_, err := push.ParsePlatform("blackberry")
	assert.Error(t, err)
}
