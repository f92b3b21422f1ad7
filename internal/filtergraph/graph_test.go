package filtergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphString(t *testing.T) {
	var g Graph
	g.add(pads("0:v"), "scale", pads("a"), kv("w", "1280"), kv("h", "-2"))
	g.add(pads("a", "1:v"), "overlay", pads("out"), kv("x", "0"), kv("enable", "gte(t,5)"))
	g.add(pads("out"), "format", nil, kv("", "yuv420p"))

	assert.Equal(t,
		"[0:v]scale=w=1280:h=-2[a];[a][1:v]overlay=x=0:enable='gte(t,5)'[out];[out]format=yuv420p",
		g.String())
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "white", quote("white"))
	assert.Equal(t, "'max(ih,720)'", quote("max(ih,720)"))
	assert.Equal(t, `'it'\''s'`, quote("it's"))
}

func TestNum(t *testing.T) {
	assert.Equal(t, "20", num(20))
	assert.Equal(t, "0", num(0))
	assert.Equal(t, "8.4", num(8.4))
	assert.Equal(t, "2.8", num(8.4/3))
	assert.Equal(t, "0.333333", num(1.0/3))
}
