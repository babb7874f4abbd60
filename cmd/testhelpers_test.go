package main

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/imgfetch/internal/config"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// withConfig installs c as the package config for the duration of the test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.Fetch.UserAgent = "imgfetch-test"
	c.Fetch.DefaultURL = config.DefaultImageURL
	c.Fetch.MaxIdleConnsPerHost = 2
	c.Batch.Concurrency = 4
	c.Batch.Format = "json"
	c.Server.Port = 8080
	c.Server.AllowedOrigins = []string{"*"}
	c.Log.Level = "info"
	c.Log.Format = "json"
	return c
}
