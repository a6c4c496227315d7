package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/nasuf/dictation-studio-service/app/controllers"
)

// ApiRouter installs every service route under the /dictation-studio
// prefix.
type ApiRouter struct {
	deps Deps
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	root := app.Group("/dictation-studio", limiter.New(limiter.Config{Max: 300}))
	root.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	requireAuth := h.deps.RequireAuth
	requireAdmin := h.deps.RequireAdmin

	// Auth
	auth := root.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)
	auth.Get("/check-email", controllers.HandleCheckEmail)
	auth.Post("/logout", requireAuth, controllers.HandleLogout)
	auth.Post("/refresh", requireAuth, controllers.HandleRefreshToken)
	auth.Post("/userinfo", controllers.HandleUpsertUserInfo)
	auth.Get("/userinfo", requireAuth, controllers.HandleUserInfo)

	// Admin user management
	admin := auth.Group("/admin", requireAuth, requireAdmin)
	admin.Get("/users", controllers.HandleAdminListUsers)
	admin.Put("/role", controllers.HandleAdminUpdateRole)
	admin.Put("/plan", controllers.HandleAdminUpdatePlan)
	admin.Delete("/users/:email", controllers.HandleAdminDeleteUser)
	admin.Get("/channels", controllers.HandleAdminListChannels)

	// User data
	user := root.Group("/user", requireAuth)
	user.Post("/progress", controllers.HandleSaveProgress)
	user.Get("/progress", controllers.HandleGetProgress)
	user.Get("/progress/all", controllers.HandleGetAllProgress)
	user.Get("/progress/channel/:channelId", controllers.HandleGetChannelProgress)
	user.Get("/duration", controllers.HandleGetDuration)
	user.Get("/config", controllers.HandleGetConfig)
	user.Post("/config", controllers.HandleUpdateConfig)
	user.Get("/missed-words", controllers.HandleGetMissedWords)
	user.Post("/missed-words", controllers.HandleAddMissedWords)
	user.Delete("/missed-words", controllers.HandleDeleteMissedWords)
	user.Get("/quota", controllers.HandleQuotaStatus)

	// Content catalog and transcripts
	service := root.Group("/service")
	service.Get("/channel", controllers.HandleListChannels)
	service.Get("/channel/:channelId", controllers.HandleGetChannel)
	service.Post("/channel", requireAuth, requireAdmin, controllers.HandleSaveChannels)
	service.Put("/channel/:channelId", requireAuth, requireAdmin, controllers.HandleUpdateChannel)
	service.Delete("/channel/:channelId", requireAuth, requireAdmin, controllers.HandleDeleteChannel)

	service.Get("/video-list/:channelId", requireAuth, controllers.HandleListVideos)
	service.Post("/video-list", requireAuth, requireAdmin, controllers.HandleSaveVideos)
	service.Delete("/video-list/:channelId/:videoId", requireAuth, requireAdmin, controllers.HandleDeleteVideo)

	service.Get("/video-transcript/:channelId/:videoId", requireAuth, controllers.HandleGetTranscript)
	service.Put("/:channelId/:videoId/transcript", requireAuth, requireAdmin, controllers.HandleUpdateSegment)
	service.Put("/:channelId/:videoId/full-transcript", requireAuth, requireAdmin, controllers.HandleUpdateFullTranscript)
	service.Post("/:channelId/:videoId/restore-transcript", requireAuth, requireAdmin, controllers.HandleRestoreTranscript)
	service.Put("/:channelId/:videoId/visibility", requireAuth, requireAdmin, controllers.HandleUpdateVideoVisibility)

	// Payments
	pay := root.Group("/payment")
	pay.Post("/create-session", requireAuth, controllers.HandleCreateCheckoutSession)
	pay.Post("/webhook", controllers.HandleStripeWebhook)
	pay.Get("/verify-session/:sessionId", requireAuth, controllers.HandleVerifySession)

	zpay := pay.Group("/zpay")
	zpay.Post("/order", requireAuth, controllers.HandleCreateZPayOrder)
	zpay.Get("/notify", controllers.HandleZPayNotify)
	zpay.Get("/order/:orderId", requireAuth, controllers.HandleGetZPayOrderStatus)
	zpay.Get("/orders", requireAuth, controllers.HandleListZPayOrders)
}
