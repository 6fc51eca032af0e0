package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/vladimirvivien/go4vl/v4l2"

	"camera-preview/pkg/camera"
	"camera-preview/pkg/pacer"
	"camera-preview/pkg/types"
)

type Config struct {
	// Devices limits the V4L2 nodes considered; empty globs /dev/video*.
	Devices     []string `json:"devices"`
	BackDevice  string   `json:"backDevice"`
	PixelFormat string   `json:"pixelFormat"`
	FPS         int      `json:"fps"`
	Synthetic   bool     `json:"synthetic"`

	Target types.Resolution `json:"target"`

	Display         types.Resolution `json:"display"`
	DisplayRotation int              `json:"displayRotation"`
	PortraitApp     bool             `json:"portraitApp"`

	// FrameInterval is in nanoseconds in JSON.
	FrameInterval time.Duration `json:"frameInterval"`

	Port        int    `json:"port"`
	WebdavPort  int    `json:"webdavPort"`
	SnapshotDir string `json:"snapshotDir"`
	LogLevel    string `json:"logLevel"`
}

func Default() Config {
	return Config{
		BackDevice:    camera.DefaultDevice,
		PixelFormat:   "mjpeg",
		FPS:           camera.DefaultFPS,
		Target:        camera.DefaultTarget,
		Display:       types.Resolution{Width: 1080, Height: 1920},
		PortraitApp:   true,
		FrameInterval: pacer.DefaultInterval,
		Port:          9999,
		WebdavPort:    9998,
		SnapshotDir:   "./camera-preview",
		LogLevel:      "info",
	}
}

// Load reads a JSON file over the defaults. Fields missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err = json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}

	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Target.Width <= 0 || c.Target.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid capture target %s", c.Target))
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid display size %s", c.Display))
	}
	if _, err := types.RotationFromDegrees(c.DisplayRotation); err != nil {
		errs = append(errs, err)
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("invalid fps %d", c.FPS))
	}
	if c.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid frame interval %s", c.FrameInterval))
	}
	if _, err := c.Format(); err != nil {
		errs = append(errs, err)
	}
	if !c.Synthetic && c.BackDevice == "" {
		errs = append(errs, errors.New("back device can not be empty"))
	}

	return errors.Join(errs...)
}

// Format maps PixelFormat to the V4L2 fourcc.
func (c Config) Format() (v4l2.FourCCType, error) {
	switch c.PixelFormat {
	case "mjpeg", "":
		return v4l2.PixelFmtMJPEG, nil
	case "jpeg":
		return v4l2.PixelFmtJPEG, nil
	case "rgb24":
		return v4l2.PixelFmtRGB24, nil
	}
	return 0, fmt.Errorf("unsupported pixel format %q", c.PixelFormat)
}

func (c Config) Rotation() types.Rotation {
	r, _ := types.RotationFromDegrees(c.DisplayRotation)
	return r
}

func (c Config) V4L2() (camera.V4L2Config, error) {
	format, err := c.Format()
	if err != nil {
		return camera.V4L2Config{}, err
	}
	return camera.V4L2Config{
		Devices:     c.Devices,
		Back:        c.BackDevice,
		PixelFormat: format,
		FPS:         uint32(c.FPS),
	}, nil
}
