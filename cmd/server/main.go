package main

// @title           Crop Notifier API
// @version         1.0
// @description     Harvest readiness notifications for h4ks.com farmers
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token
func main() {
	Execute()
}
