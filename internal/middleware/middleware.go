package middleware

import (
	"crypto/subtle"
	"net/http"
	"net/netip"

	"github.com/labstack/echo/v4"

	"sellerbot/internal/repository"
)

// APIAuth validates the Token header against the configured API key.
func APIAuth(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get("Token")
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"status": false,
					"msg":    "Token is required",
					"obj":    nil,
				})
			}

			if apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1 {
				return next(c)
			}

			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"status": false,
				"msg":    "Invalid token",
				"obj":    nil,
			})
		}
	}
}

// APILogger records API requests to the logs_api table.
func APILogger(settingRepo *repository.SettingRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			ip := c.RealIP()
			actions, _ := c.Get("api_actions").(string)
			headers := map[string]string{
				"Token":        c.Request().Header.Get("Token"),
				"Content-Type": c.Request().Header.Get("Content-Type"),
			}

			go func() {
				_ = settingRepo.CreateAPILog(headers, nil, ip, actions)
			}()

			return err
		}
	}
}

// Telegram's published webhook source ranges.
var telegramRanges = []netip.Prefix{
	netip.MustParsePrefix("149.154.160.0/20"),
	netip.MustParsePrefix("91.108.4.0/22"),
}

func isTelegramIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	if addr.IsLoopback() {
		return true
	}
	for _, p := range telegramRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// TelegramIPCheck ensures webhook requests come from Telegram's published
// ranges or localhost.
func TelegramIPCheck() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isTelegramIP(c.RealIP()) {
				return c.String(http.StatusForbidden, "Forbidden")
			}
			return next(c)
		}
	}
}

// CORS configures permissive CORS headers for the admin API endpoints.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type, Token, Authorization")
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
