package startup

import (
	"github.com/datatrails/go-wallpaper-mirror/logger"
)

type Logger = logger.Logger
