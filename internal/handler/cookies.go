package handler

import (
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/service"
	"github.com/gin-gonic/gin"
)

func setAuthCookies(c *gin.Context, svc *service.AuthService, session *model.Session) {
	setCookie(c, svc.AccessCookie(), session.AccessToken)
	setCookie(c, svc.RefreshCookie(), session.RefreshToken)
}

func clearAuthCookies(c *gin.Context, svc *service.AuthService) {
	clearCookie(c, svc.AccessCookie())
	clearCookie(c, svc.RefreshCookie())
}

func setCookie(c *gin.Context, cfg service.CookieConfig, value string) {
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, value, cfg.MaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func clearCookie(c *gin.Context, cfg service.CookieConfig) {
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}
