package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapToEnvList(t *testing.T) {
	env := map[string]string{
		"SDL_VIDEODRIVER": "fbcon",
		"SDL_FBDEV":       "/dev/fb0",
	}

	list := MapToEnvList(env)
	assert.Len(t, list, 2)
	assert.ElementsMatch(t, []string{
		"SDL_VIDEODRIVER=fbcon",
		"SDL_FBDEV=/dev/fb0",
	}, list)
}

func TestMapToEnvListEmpty(t *testing.T) {
	assert.Empty(t, MapToEnvList(nil))
}
