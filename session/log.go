package session

import "ncat/logger"

var log = logger.Log.WithField("component", "session")
