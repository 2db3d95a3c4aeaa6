package tracing

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/datatrails/go-wallpaper-mirror/logger"
)

// newZipkinLogger routes reporter errors into the service log once the logger
// is up.
func newZipkinLogger() *log.Logger {
	if logger.Plain != nil {
		return zap.NewStdLog(logger.Plain.Named("zipkin"))
	}
	return log.New(os.Stdout, "zipkin", log.Ldate|log.Ltime|log.Lmicroseconds|log.Llongfile)
}
