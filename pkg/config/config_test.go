package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vladimirvivien/go4vl/v4l2"

	"camera-preview/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"synthetic": true, "display": {"width": 1920, "height": 1080}, "displayRotation": 90, "pixelFormat": "rgb24"}`
	if err := os.WriteFile(path, []byte(data), 0666); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Synthetic || c.Display != (types.Resolution{Width: 1920, Height: 1080}) {
		t.Fatalf("config: %+v", c)
	}
	if c.Rotation() != types.Rotation90 {
		t.Fatalf("rotation: %s", c.Rotation())
	}
	if c.Target != (types.Resolution{Width: 1600, Height: 1200}) || c.Port != 9999 {
		t.Fatalf("defaults lost: %+v", c)
	}
	v, err := c.V4L2()
	if err != nil {
		t.Fatal(err)
	}
	if v.PixelFormat != v4l2.PixelFmtRGB24 {
		t.Fatalf("format: %v", v.PixelFormat)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"target", func(c *Config) { c.Target.Width = 0 }},
		{"display", func(c *Config) { c.Display.Height = -1 }},
		{"rotation", func(c *Config) { c.DisplayRotation = 45 }},
		{"fps", func(c *Config) { c.FPS = 0 }},
		{"interval", func(c *Config) { c.FrameInterval = 0 }},
		{"format", func(c *Config) { c.PixelFormat = "yuyv" }},
		{"device", func(c *Config) { c.BackDevice = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
