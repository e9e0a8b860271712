package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceKey(t *testing.T) {
	inst := &ServiceInstance{Name: "storefront-checkout", Host: "10.0.0.5", Port: 50051}

	assert.Equal(t, "10.0.0.5:50051", inst.Addr())
	assert.Equal(t, "/services/storefront-checkout/10.0.0.5:50051", serviceKey("/services", inst))
}

func TestParseInstance(t *testing.T) {
	inst, err := parseInstance("checkout", "10.0.0.5:50051")
	require.NoError(t, err)
	assert.Equal(t, &ServiceInstance{Name: "checkout", Host: "10.0.0.5", Port: 50051}, inst)

	inst, err = parseInstance("checkout", "[::1]:7000")
	require.NoError(t, err)
	assert.Equal(t, "[::1]:7000", inst.Addr())

	_, err = parseInstance("checkout", "10.0.0.5")
	assert.Error(t, err)
	_, err = parseInstance("checkout", "host:http")
	assert.Error(t, err)
}
