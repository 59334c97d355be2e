// README: Structured logger construction.
package infra

import "go.uber.org/zap"

func NewLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
