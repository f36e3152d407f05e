package chain

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClientBlockNumberLive dials a real RPC endpoint named by
// RPC_URL in .env.test.local and reads the chain head. It's skipped
// when that file is absent, since most runs have no live endpoint
// configured.
func TestClientBlockNumberLive(t *testing.T) {
	if err := godotenv.Load(".env.test.local"); err != nil {
		t.Skip("skipping live chain test: .env.test.local not found")
	}

	rpcURL := envOrSkip(t, "RPC_URL")
	client, err := Dial(rpcURL)
	require.NoError(t, err)
	defer client.Close()

	head, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Greater(t, head, uint64(0))
}

func envOrSkip(t *testing.T, key string) string {
	t.Helper()
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		t.Skipf("skipping live chain test: %s not set", key)
	}
	return v
}
