package camera

import (
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"go.uber.org/zap"

	"camera-preview/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

const (
	ctrlFocusAuto v4l2.CtrlID = 10094860 // V4L2_CID_FOCUS_AUTO
)

func setContinuousFocus(dev *device.Device) error {
	return dev.SetControlValue(ctrlFocusAuto, 1)
}
