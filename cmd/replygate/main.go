// Package main is the entry point for ReplyGate.
//
//	@title						ReplyGate - Subscription & Usage Metering
//	@version					1.0
//	@description				Freemium subscription lifecycle and usage-metering engine for device-keyed AI messaging apps.
//	@termsOfService				https://github.com/replygate/replygate
//
//	@contact.name				ReplyGate Support
//	@contact.url				https://github.com/replygate/replygate/issues
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development; real deployments use
	// REPLYGATE_* environment variables or replygate.yaml.
	_ = godotenv.Load()

	Execute()
}
