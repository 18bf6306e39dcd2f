package logger

import (
	"go.uber.org/zap"
)

// New returns a development logger for the dev environment and a JSON
// production logger otherwise.
func New(environment string) *zap.SugaredLogger {
	if environment == "dev" {
		return zap.Must(zap.NewDevelopment()).Sugar()
	}
	return zap.Must(zap.NewProduction()).Sugar()
}
