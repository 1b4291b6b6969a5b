package tls

import "ncat/logger"

var log = logger.Log.WithField("transport", "tls")
