package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	assert.NotPanics(t, Init)

	assert.NotPanics(t, func() {
		ObserveFetched("gupy", 10)
		ObserveDeduped(1)
		ObserveExtraction("ok")
		ObserveVerdict(true, "")
		ObserveVerdict(false, "NOT_TRULY_REMOTE")
		ObserveFactLoaded()
		ObserveNotificationSent()
		ObserveError("harvest")
	})
}

func TestHandler(t *testing.T) {
	assert.NotNil(t, Handler())
}
