package debugsvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrips(t *testing.T) {
	var c jsonCodec
	req := &ListContextsRequest{AfterHandle: 7, Limit: 10}

	data, err := c.Marshal(req)
	require.NoError(t, err)

	var got ListContextsRequest
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, *req, got)
	assert.Equal(t, "json", c.Name())
}

func TestServiceDescMethodNames(t *testing.T) {
	names := make([]string, len(serviceDesc.Methods))
	for i, m := range serviceDesc.Methods {
		names[i] = m.MethodName
	}
	assert.ElementsMatch(t, []string{"GetStatus", "ListContexts"}, names)
}
