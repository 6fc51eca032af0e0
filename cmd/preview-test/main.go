package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"camera-preview/pkg/camera"
	"camera-preview/pkg/config"
	"camera-preview/pkg/preview"
	"camera-preview/pkg/storage/consts"
	imgutil "camera-preview/pkg/utils/image"
)

type options struct {
	configFile string
	synthetic  bool
	width      int
	height     int
	rotation   int
	n          int
	out        string
	timeout    time.Duration
}

func newFlagSet(o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("preview-test", flag.ExitOnError)
	fs.StringVar(&o.configFile, "config", "", "json config file")
	fs.BoolVar(&o.synthetic, "synthetic", false, "use the synthetic camera")
	fs.IntVar(&o.width, "w", 1080, "display width")
	fs.IntVar(&o.height, "h", 1920, "display height")
	fs.IntVar(&o.rotation, "r", 0, "display rotation in degrees")
	fs.IntVar(&o.n, "n", 60, "frames to present after the camera is ready")
	fs.StringVar(&o.out, "o", "preview.jpg", "output file")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "overall timeout")
	return fs
}

// loadConfig reads the config file, if any. Only flags set on the command
// line override it.
func loadConfig(fs *flag.FlagSet, o *options) (config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "synthetic":
			cfg.Synthetic = o.synthetic
		case "w":
			cfg.Display.Width = o.width
		case "h":
			cfg.Display.Height = o.height
		case "r":
			cfg.DisplayRotation = o.rotation
		}
	})

	return cfg, cfg.Validate()
}

// Runs the preview headless for a number of presented frames and writes the
// last one to a JPEG file.
func main() {
	o := &options{}
	fs := newFlagSet(o)
	_ = fs.Parse(os.Args[1:])

	cfg, err := loadConfig(fs, o)
	if err != nil {
		exit(err)
	}

	p, err := preview.New(cfg)
	if err != nil {
		exit(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	snap, err := waitSession(ctx, p)
	if err != nil {
		exit(err)
	}
	fmt.Printf("camera %s ready at %s, session %s\n", snap.CameraID, snap.Size, snap.ID)

	start := p.GPU.Presented()
	for p.GPU.Presented()-start < uint64(o.n) {
		select {
		case <-ctx.Done():
			exit(fmt.Errorf("presented %d of %d frames", p.GPU.Presented()-start, o.n))
		case <-p.GPU.Frames():
		}
	}
	cancel()
	if err := <-done; err != nil {
		exit(err)
	}

	cfgUsed := p.Pipeline.Config()
	if cfgUsed != nil {
		fmt.Printf("rotation %s, viewport %s\n", cfgUsed.Rotation, cfgUsed.Viewport)
	}
	stats := p.Pacer.Stats()
	fmt.Printf("fps %.2f, last frame: process %s, delay %s, sleep %s\n", stats.FPS, stats.Processing, stats.Delay, stats.Sleep)
	if st := p.Texture(); st != nil {
		s := st.Stats()
		fmt.Printf("frames published %d, latched %d, dropped %d, last %s\n", s.Published, s.Latched, s.Dropped, s.LastSize)
	}

	f, err := os.Create(o.out)
	if err != nil {
		exit(err)
	}
	defer f.Close()
	if err := imgutil.EncodeJPEG(p.GPU.Latest(), f, consts.DefaultJPEGQuality); err != nil {
		exit(err)
	}
	fmt.Printf("saved %s\n", o.out)
}

func waitSession(ctx context.Context, p *preview.Preview) (*camera.Snapshot, error) {
	// the session is opened by the render loop once the surface exists
	for p.Texture() == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return p.Session.WaitReady(ctx)
}

func exit(err error) {
	fmt.Println(err)
	os.Exit(1)
}
