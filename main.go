package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"camera-preview/pkg/camera"
	"camera-preview/pkg/config"
	"camera-preview/pkg/ov"
	"camera-preview/pkg/preview"
	"camera-preview/pkg/storage"
	"camera-preview/pkg/storage/consts"
	"camera-preview/pkg/types"
	"camera-preview/pkg/utils"
	imgutil "camera-preview/pkg/utils/image"
	"camera-preview/pkg/utils/ps"
	"camera-preview/pkg/webdav"
)

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"
)

var (
	configFile = flag.String("config", "", "json config file")
	webdavPort = flag.Int("webdav-port", 9998, "webdav port")
	port       = flag.Int("port", 9999, "ui port")
	storageDir = flag.String("dir", "./camera-preview", "snapshot dir")
	staticsDir = flag.String("statics", "", "ui statics dir")
	synthetic  = flag.Bool("synthetic", false, "use the synthetic camera")
	logLevel   = flag.String("log-level", "info", "debug, info, warn or error")

	pv  *preview.Preview
	stg *storage.Storage
	dav *webdav.Webdav

	logger *zap.SugaredLogger
)

func init() {
	logger = utils.GetLogger()
	flag.Parse()
}

func main() {
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal(err)
	}
	if err = utils.SetLevel(cfg.LogLevel); err != nil {
		logger.Fatal(err)
	}

	// init storage
	stg, err = storage.New(cfg.SnapshotDir)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dav = webdav.New(ctx, cfg.WebdavPort, stg.Dir())
	defer dav.Stop()

	pv, err = preview.New(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	go func() {
		// a render error is fatal for the preview
		if err := pv.Run(ctx); err != nil {
			logger.Errorf("render loop: %s", err)
		}
		cancel()
	}()

	// init gin
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	if *staticsDir != "" {
		if err := registerStaticsDir(r, *staticsDir, "/"); err != nil {
			logger.Fatal(err)
		}
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	apiRouter := r.Group("/api")

	sessionRouter := apiRouter.Group("/session")
	sessionRouter.GET("", getSession)
	sessionRouter.POST("/open", openSession)
	sessionRouter.POST("/close", closeSession)

	apiRouter.GET("/display", getDisplay)
	apiRouter.PUT("/display", updateDisplay)

	previewRouter := apiRouter.Group("/preview")
	previewRouter.GET("/stream", previewStream)
	previewRouter.POST("/snapshot", takeSnapshot)
	previewRouter.GET("/snapshots", listSnapshots)
	previewRouter.GET("/snapshots/:name", getSnapshot)

	deviceRouter := apiRouter.Group("/device")
	deviceRouter.GET("/cameras", listCameras)
	deviceRouter.GET("/status", deviceStatus)
	deviceRouter.PUT("/webdav", ctlWebdav)

	logger.Infof("camera preview listening on :%d", cfg.Port)
	utils.ListenAndServe(ctx, r, cfg.Port)
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return cfg, err
		}
	}
	// flags given on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "webdav-port":
			cfg.WebdavPort = *webdavPort
		case "dir":
			cfg.SnapshotDir = *storageDir
		case "synthetic":
			cfg.Synthetic = *synthetic
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	return cfg, cfg.Validate()
}

func getSession(c *gin.Context) {
	c.JSON(http.StatusOK, jsend.Success(sessionStatus()))
}

func openSession(c *gin.Context) {
	if err := pv.Open(); err != nil {
		sessionErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(sessionStatus()))
}

func closeSession(c *gin.Context) {
	if err := pv.Session.Close(); err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(sessionStatus()))
}

func sessionStatus() ov.Session {
	s := ov.Session{
		State:  pv.Session.State(),
		Config: pv.Pipeline.Config(),
	}
	if snap := pv.Session.Snapshot(); snap != nil {
		s.ID = snap.ID
		s.CameraID = snap.CameraID
		size := snap.Size
		s.Size = &size
	}
	if err := pv.Session.LastError(); err != nil {
		s.LastError = err.Error()
	}
	if err := pv.Notice(); err != nil {
		s.Notice = err.Error()
	}

	return s
}

func getDisplay(c *gin.Context) {
	size := pv.Display.Size()
	c.JSON(http.StatusOK, jsend.Success(ov.DisplayState{
		Display: ov.Display{
			Width:    size.Width,
			Height:   size.Height,
			Rotation: pv.Display.Rotation().Degrees(),
		},
		Orientation: pv.Resolver.State(),
	}))
}

func updateDisplay(c *gin.Context) {
	var d ov.Display
	if err := c.Bind(&d); err != nil {
		return
	}
	rotation, err := types.RotationFromDegrees(d.Rotation)
	if err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	if err = pv.SetDisplay(types.Resolution{Width: d.Width, Height: d.Height}, rotation); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}

	c.JSON(http.StatusOK, jsend.Success(d))
}

func previewStream(c *gin.Context) {
	mimeWriter := multipart.NewWriter(c.Writer)
	c.Header("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mimeWriter.Boundary()))
	partHeader := make(textproto.MIMEHeader)
	partHeader.Add("Content-Type", "image/jpeg")

	ticker := time.NewTicker(pv.Pacer.Interval())
	defer ticker.Stop()

	var last *image.RGBA
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
		frame := pv.GPU.Latest()
		if frame == nil || frame == last {
			continue
		}
		last = frame

		partWriter, err := mimeWriter.CreatePart(partHeader)
		if err != nil {
			logger.Warnf("failed to create multi-part writer: %s", err)
			return
		}
		if err := imgutil.EncodeJPEG(frame, partWriter, consts.DefaultJPEGQuality); err != nil {
			logger.Warnf("failed to write image: %s", err)
			return
		}
		c.Writer.Flush()
	}
}

func takeSnapshot(c *gin.Context) {
	frame := pv.GPU.Latest()
	if frame == nil {
		c.JSON(http.StatusConflict, jsend.SimpleErr("no frame presented yet"))
		return
	}
	data, err := imgutil.EncodeJPEGBytes(frame, consts.DefaultJPEGQuality)
	if err != nil {
		internalErr(c, err)
		return
	}
	cameraID := ""
	if snap := pv.Session.Snapshot(); snap != nil {
		cameraID = snap.CameraID
	}
	name, err := stg.Save(cameraID, data)
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.Snapshot{
		Name: name,
		Size: humanize.Bytes(uint64(len(data))),
	}))
}

func listSnapshots(c *gin.Context) {
	files, err := stg.List()
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(files))
}

func getSnapshot(c *gin.Context) {
	data, err := stg.Get(c.Param("name"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr(err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func listCameras(c *gin.Context) {
	list, err := preview.Describe(pv.Manager)
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(list))
}

func deviceStatus(c *gin.Context) {
	var (
		status ov.Status
		err    error
	)
	if status.CPU, err = ps.CPUStatus(); err != nil {
		internalErr(c, err)
		return
	}
	if status.Memory, err = ps.MemoryStatus(); err != nil {
		internalErr(c, err)
		return
	}
	if disk, err := ps.DiskUsage(stg.Dir()); err == nil {
		status.Disk = &disk
	}
	if size, err := ps.DirDiskUsage(stg.Dir()); err == nil {
		status.Snapshots = humanize.Bytes(uint64(size))
	}
	status.Pacer = pv.Pacer.Stats()
	if st := pv.Texture(); st != nil {
		status.Surface = st.Stats()
	}
	status.Presented = pv.GPU.Presented()

	c.JSON(http.StatusOK, jsend.Success(status))
}

func ctlWebdav(c *gin.Context) {
	op := c.Query("op")
	switch op {
	case webDavStart:
		if !dav.Start() {
			c.JSON(http.StatusOK, jsend.Success("the webdav service is already enabled"))
			return
		}
		c.JSON(http.StatusOK, jsend.Success(fmt.Sprintf("%s:%d", strings.Split(c.Request.Host, ":")[0], dav.Port())))
	case webDavShutdown:
		if !dav.Stop() {
			c.JSON(http.StatusOK, jsend.SimpleErr("the webdav service has been shut down"))
			return
		}
		c.JSON(http.StatusOK, jsend.Success(nil))
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}

func registerStaticsDir(group gin.IRoutes, dir, relativeGroup string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("the specified directory %s does not exist", dir)
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	group.StaticFile(relativeGroup, filepath.Join(dir, "index.html"))
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relativePath := path.Join(relativeGroup, strings.Replace(filepath.ToSlash(p), dir, "", 1))
			group.StaticFile(relativePath, p)
		}
		return nil
	})
}

func sessionErr(c *gin.Context, err error) {
	var accessErr *camera.DeviceAccessError
	switch {
	case errors.Is(err, camera.ErrInvalidState):
		c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
	case errors.As(err, &accessErr):
		c.JSON(http.StatusServiceUnavailable, jsend.SimpleErr(err.Error()))
	default:
		internalErr(c, err)
	}
}

func internalErr(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
}
