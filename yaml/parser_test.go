package yaml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const manifest = `version: "1.0"
provider:
  name: Pi Works
  endpoint: https://pi.example.com
  capabilities:
    - service_type: pi_calculation
      max_complexity: 100000
      avg_completion_time: 180
  pricing:
    pi_calculation:
      base_price: "0.25"
      unit: per_1k_digits
`

func TestLoadProviderManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0600))

	req, err := LoadProviderManifest(path)
	require.NoError(t, err)
	require.Equal(t, "Pi Works", req.Name)
	require.Equal(t, "https://pi.example.com", req.Endpoint)
	require.Len(t, req.Capabilities, 1)
	require.Equal(t, uint64(100000), req.Capabilities[0].MaxComplexity)
	require.Equal(t, uint64(180), req.Capabilities[0].AvgCompletionTime)

	tier, ok := req.Pricing["pi_calculation"]
	require.True(t, ok)
	require.True(t, tier.BasePrice.Equal(decimal.RequireFromString("0.25")))
	require.Equal(t, "per_1k_digits", tier.Unit)
}

func TestParseProviderManifestRejects(t *testing.T) {
	cases := map[string]string{
		"unknown version":  "version: \"2.0\"\nprovider:\n  name: x\n",
		"missing version":  "provider:\n  name: x\n",
		"no capabilities":  "version: \"1.0\"\nprovider:\n  name: x\n  endpoint: https://x\n",
		"missing endpoint": "version: \"1.0\"\nprovider:\n  name: x\n  capabilities:\n    - service_type: a\n",
		"unknown field":    "version: \"1.0\"\nprovider:\n  name: x\n  endpoint: https://x\n  gpu: 4\n",
		"malformed":        "version: [",
	}
	for name, doc := range cases {
		_, err := ParseProviderManifest([]byte(doc))
		require.Error(t, err, name)
	}

	_, err := LoadProviderManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
