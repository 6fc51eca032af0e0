package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"camera-preview/pkg/camera"
	"camera-preview/pkg/preview"
)

func main() {
	devNames := ""
	back := camera.DefaultDevice
	synthetic := false
	flag.StringVar(&devNames, "d", devNames, "comma separated device names (path), all /dev/video* when empty")
	flag.StringVar(&back, "back", back, "back camera device")
	flag.BoolVar(&synthetic, "synthetic", synthetic, "describe the synthetic camera")
	flag.Parse()

	var m camera.Manager
	if synthetic {
		m = camera.NewSyntheticManager(camera.SyntheticSizes, camera.DefaultFPS)
	} else {
		var devices []string
		if devNames != "" {
			devices = strings.Split(devNames, ",")
		}
		m = camera.NewV4L2Manager(camera.V4L2Config{
			Devices:     devices,
			Back:        back,
			PixelFormat: camera.DefaultPixelFormat,
			FPS:         camera.DefaultFPS,
		})
	}

	list, err := preview.Describe(m)
	if err != nil {
		log.Fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(list); err != nil {
		log.Fatal(err)
	}
}
