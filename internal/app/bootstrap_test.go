package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sempervigil.dev/sempervigil/internal/config"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestSelectQueues_EmptyClassesWiresBoth(t *testing.T) {
	workerCfg := config.WorkerConfig{FetchPoolSize: 20, LLMPoolSize: 4}

	queues := selectQueues(workerCfg, nil)

	require.Len(t, queues, 2)
	assert.Equal(t, 20, queues["fetch"].MaxWorkers)
	assert.Equal(t, 4, queues["llm"].MaxWorkers)
}

func TestSelectQueues_RestrictsToNamedClass(t *testing.T) {
	workerCfg := config.WorkerConfig{FetchPoolSize: 20, LLMPoolSize: 4}

	queues := selectQueues(workerCfg, []string{"llm"})

	require.Len(t, queues, 1)
	_, hasFetch := queues["fetch"]
	assert.False(t, hasFetch)
	assert.Equal(t, 4, queues["llm"].MaxWorkers)
}

func TestSelectQueues_UnknownClassIsIgnored(t *testing.T) {
	workerCfg := config.WorkerConfig{FetchPoolSize: 20, LLMPoolSize: 4}

	queues := selectQueues(workerCfg, []string{"reporting"})

	assert.Empty(t, queues)
}

func TestApp_Shutdown_NilFieldsDoesNotPanic(t *testing.T) {
	app := &App{}
	assert.NotPanics(t, func() { app.Shutdown() })
}
