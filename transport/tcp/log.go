package tcp

import "ncat/logger"

var log = logger.Log.WithField("transport", "tcp")
