package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

func TestFileAuditLogger_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileAuditLogger(path, common.GetLogger())
	require.NoError(t, err)

	require.NoError(t, logger.Log(models.AuditEvent{
		EventType: models.AuditAuthentication,
		Actor:     "user_1",
		Action:    "websocket_auth",
		Status:    "success",
		IPAddress: "10.0.0.5",
	}))
	require.NoError(t, logger.Log(models.AuditEvent{
		EventType: models.AuditSecurityEvent,
		Actor:     "unknown",
		Action:    "websocket_auth",
		Status:    "denied",
	}))
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []models.AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e models.AuditEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, events, 2)
	assert.Equal(t, models.AuditAuthentication, events[0].EventType)
	assert.Equal(t, "success", events[0].Status)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, "denied", events[1].Status)
}

func TestFileAuditLogger_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	logger, err := NewFileAuditLogger(path, common.GetLogger())
	require.NoError(t, err)
	require.NoError(t, logger.Log(models.AuditEvent{Action: "first"}))
	require.NoError(t, logger.Close())

	logger, err = NewFileAuditLogger(path, common.GetLogger())
	require.NoError(t, err)
	require.NoError(t, logger.Log(models.AuditEvent{Action: "second"}))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestNullAuditLogger(t *testing.T) {
	logger := NewNullAuditLogger()
	assert.NoError(t, logger.Log(models.AuditEvent{Action: "ignored"}))
	assert.NoError(t, logger.Close())
}
