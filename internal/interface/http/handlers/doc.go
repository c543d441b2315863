// Package handlers contains the gin handlers and middleware of the HTTP
// surface: liveness and readiness probes backed by parallel health checks,
// and the Telegram webhook endpoint.
//
//	checker := handlers.NewHealthChecker(version)
//	checker.AddCheck("store", handlers.PingCheck(store))
//	checker.AddCheck("redis", handlers.PingCheck(redisClient))
//
//	r.GET("/readyz", checker.Readiness)
//	r.POST("/telegram/webhook", handlers.NewTelegramWebhook(bot.HandleUpdate, secret, log).Handle)
package handlers
