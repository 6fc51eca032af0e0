package consts

const (
	DefaultSnapshotsDir = "snapshots"
	DefaultInfoFile     = "info.json"

	DefaultImageExt = ".jpg"
	DefaultPrefix   = "preview"

	DefaultFilePerm = 0666
	DefaultDirPerm  = 0777

	DefaultJPEGQuality = 90
)
