package main

import (
	"os"
)

// @title Deck Credits API
// @version 1.0
// @description Credit metering and subscription plan changes for the slide-deck product.

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
