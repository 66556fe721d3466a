package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "WalkStarted", WalkStarted.String())
	assert.Equal(t, "FileToggled", FileToggled.String())
	assert.Equal(t, "SurveyProgress", SurveyProgress.String())
	assert.Equal(t, "Unknown", Type(0).String())
	assert.Equal(t, "Unknown", Type(100).String())
}
