package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentStatusPipelineFlow(t *testing.T) {
	assert.True(t, DOCUMENT_STATUS_PENDING.CanTransition(DOCUMENT_STATUS_STORING))
	assert.True(t, DOCUMENT_STATUS_STORING.CanTransition(DOCUMENT_STATUS_CHUNKING))
	assert.True(t, DOCUMENT_STATUS_CHUNKING.CanTransition(DOCUMENT_STATUS_EMBEDDING))
	assert.True(t, DOCUMENT_STATUS_EMBEDDING.CanTransition(DOCUMENT_STATUS_READY))
}

func TestDocumentStatusNoSkippingStages(t *testing.T) {
	assert.False(t, DOCUMENT_STATUS_PENDING.CanTransition(DOCUMENT_STATUS_READY))
	assert.False(t, DOCUMENT_STATUS_STORING.CanTransition(DOCUMENT_STATUS_EMBEDDING))
	assert.False(t, DOCUMENT_STATUS_READY.CanTransition(DOCUMENT_STATUS_FAILED))
	assert.False(t, DOCUMENT_STATUS_CHUNKING.CanTransition(DOCUMENT_STATUS_STORING))
}

func TestDocumentStatusFailureAndReindex(t *testing.T) {
	for _, s := range []DocumentStatus{DOCUMENT_STATUS_PENDING, DOCUMENT_STATUS_STORING, DOCUMENT_STATUS_CHUNKING, DOCUMENT_STATUS_EMBEDDING} {
		assert.True(t, s.CanTransition(DOCUMENT_STATUS_FAILED), string(s))
	}
	// ready/failed 的文档都可以重新入库
	assert.True(t, DOCUMENT_STATUS_READY.CanTransition(DOCUMENT_STATUS_PENDING))
	assert.True(t, DOCUMENT_STATUS_FAILED.CanTransition(DOCUMENT_STATUS_PENDING))
}

func TestDocumentStatusInterruptedCanRestart(t *testing.T) {
	// 实例崩溃后停在中间态的文档要能退回 pending 重走流水线
	for _, s := range []DocumentStatus{DOCUMENT_STATUS_STORING, DOCUMENT_STATUS_CHUNKING, DOCUMENT_STATUS_EMBEDDING} {
		assert.True(t, s.CanTransition(DOCUMENT_STATUS_PENDING), string(s))
	}
}

func TestDocumentStatusIsTerminal(t *testing.T) {
	assert.True(t, DOCUMENT_STATUS_READY.IsTerminal())
	assert.True(t, DOCUMENT_STATUS_FAILED.IsTerminal())
	assert.False(t, DOCUMENT_STATUS_EMBEDDING.IsTerminal())
}
