package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunRejectsMalformedArgs(t *testing.T) {
	c := &JobsCLI{}
	var out bytes.Buffer

	require.ErrorIs(t, c.Run(context.Background(), nil, &out), ErrUsage)
	require.ErrorIs(t, c.Run(context.Background(), []string{"trigger"}, &out), ErrUsage)
	require.ErrorIs(t, c.Run(context.Background(), []string{"purge"}, &out), ErrUsage)
	require.ErrorContains(t, c.Run(context.Background(), []string{"trigger", "inventory:low-stock-scan", "-3"}, &out), "invalid number")
	require.Empty(t, out.String())
}

func TestTriggerWithoutClient(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "inventory:low-stock-scan", 0)
	require.ErrorContains(t, err, "client not configured")

	_, err = c.InspectQueue(context.Background())
	require.ErrorContains(t, err, "inspector not configured")
}

func TestNewJobsCLIRequiresAddress(t *testing.T) {
	_, err := NewJobsCLI("")
	require.Error(t, err)
}
