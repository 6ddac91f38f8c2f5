package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polisai/polis-oss/internal/pipelineerr"
)

func TestNamespaceOrDefault(t *testing.T) {
	assert.Equal(t, "default", namespaceOrDefault(""))
	assert.Equal(t, "prod", namespaceOrDefault("prod"))
}

func TestRemoteErrorExitCode(t *testing.T) {
	notFound := &remoteError{status: http.StatusNotFound}
	assert.Equal(t, 2, notFound.ExitCode())

	conflict := &remoteError{status: http.StatusConflict}
	assert.Equal(t, 1, conflict.ExitCode())
}

func TestExitCodeForPipelineErr(t *testing.T) {
	assert.Equal(t, 2, exitCodeFor(pipelineerr.New(pipelineerr.KindNotFound, "missing")))
	assert.Equal(t, 1, exitCodeFor(pipelineerr.New(pipelineerr.KindCompositionValidation, "bad")))
	assert.Equal(t, 1, exitCodeFor(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
