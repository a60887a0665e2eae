package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage_OK(t *testing.T) {
	payload := []byte(`{"workflow_id":"3f29c9c4-0e1f-4f1a-9a0a-1c2b3d4e5f60","flow_session_id":"3f29c9c4-0e1f-4f1a-9a0a-1c2b3d4e5f61"}`)
	m, err := decodeMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "3f29c9c4-0e1f-4f1a-9a0a-1c2b3d4e5f60", m.WorkflowID.String())
}

func TestDecodeMessage_RejectsInvalidJSON(t *testing.T) {
	_, err := decodeMessage([]byte(`not json`))
	assert.Error(t, err)
}
